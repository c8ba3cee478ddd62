package extract

import "strings"

// categoryKeywords drives keyword inference for the pattern parsers.
// Matching is case-insensitive substring over the transaction type and
// merchant strings. Order matters: earlier categories win on overlap.
var categoryKeywords = []struct {
	category Category
	keywords []string
}{
	{CategoryFood, []string{
		"grabfood", "shopeefood", "befood", "restaurant", "nha hang",
		"coffee", "cafe", "ca phe", "food", "bakery", "pho", "bun",
		"com ", "tra sua", "milk tea", "highlands", "phuc long", "kfc",
		"lotteria", "pizza", "quan an", "an uong", "eatery",
	}},
	{CategoryTransport, []string{
		"grabbike", "grabcar", "xanh sm", "gojek", "be ride", "taxi",
		"ride", "chuyen di", "fuel", "petrol", "xang", "parking",
		"gui xe", "bus", "metro", "vexere", "airline", "flight",
	}},
	{CategoryShopping, []string{
		"shopee", "lazada", "tiki", "sendo", "mall", "sieu thi",
		"supermarket", "winmart", "bach hoa", "store", "shop",
		"clothing", "fashion", "dien may",
	}},
	{CategoryEntertainment, []string{
		"cgv", "cinema", "rap phim", "movie", "netflix", "spotify",
		"youtube", "game", "steam", "karaoke", "concert", "ticket",
	}},
	{CategoryBills, []string{
		"evn", "dien luc", "electricity", "water", "nuoc", "internet",
		"fpt", "viettel", "vinaphone", "mobifone", "topup", "nap tien",
		"recharge", "bill", "hoa don", "insurance", "bao hiem", "rent",
		"tien nha",
	}},
	{CategoryHealth, []string{
		"pharmacy", "nha thuoc", "long chau", "an khang", "hospital",
		"benh vien", "clinic", "phong kham", "gym", "fitness", "yoga",
		"dental", "nha khoa",
	}},
}

// InferCategory keyword-matches the transaction type and merchant
// strings against the fixed taxonomy, defaulting to Other.
func InferCategory(transactionType, merchant string) Category {
	haystack := strings.ToLower(transactionType + " " + merchant)
	for _, group := range categoryKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(haystack, kw) {
				return group.category
			}
		}
	}
	return CategoryOther
}
