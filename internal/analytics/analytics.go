// Package analytics derives spending insights from stored expenses.
package analytics

import (
	"fmt"
	"sort"
	"time"

	"github.com/tqhuy/finfit/internal/extract"
	"github.com/tqhuy/finfit/internal/mealtime"
	"github.com/tqhuy/finfit/internal/store"
)

// patternThreshold is the minimum relative gap between weekend and
// weekday averages before a pattern is reported.
const patternThreshold = 0.30

// Insight is one detected spending pattern.
type Insight struct {
	Category   string  `json:"category"`
	Message    string  `json:"message"`
	WeekendAvg float64 `json:"weekendAvg"`
	WeekdayAvg float64 `json:"weekdayAvg"`
}

// CategorySummary describes the dominant spending category.
type CategorySummary struct {
	Category   string  `json:"category"`
	Total      float64 `json:"total"`
	Percentage float64 `json:"percentage"`
}

// DetectWeekendWeekdayPatterns compares per-category average daily
// spend on weekends against weekdays: the bucket total divided by the
// number of distinct days that saw spending in that bucket. A category
// is reported only when both sides have data and the gap exceeds the
// threshold. Day and weekend membership are decided in the business
// timezone.
func DetectWeekendWeekdayPatterns(rows []*store.ExpenseRow) []Insight {
	type split struct {
		weekendSum, weekdaySum   float64
		weekendDays, weekdayDays map[string]struct{}
	}

	splits := make(map[string]*split)
	for _, row := range rows {
		category := categoryOrOther(row.Category)
		s := splits[category]
		if s == nil {
			s = &split{
				weekendDays: make(map[string]struct{}),
				weekdayDays: make(map[string]struct{}),
			}
			splits[category] = s
		}
		day := mealtime.BusinessTime(row.TransactionTS).Format("2006-01-02")
		if isWeekend(row.TransactionTS) {
			s.weekendSum += amountOf(row)
			s.weekendDays[day] = struct{}{}
		} else {
			s.weekdaySum += amountOf(row)
			s.weekdayDays[day] = struct{}{}
		}
	}

	categories := make([]string, 0, len(splits))
	for category := range splits {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	var insights []Insight
	for _, category := range categories {
		s := splits[category]
		if len(s.weekendDays) == 0 || len(s.weekdayDays) == 0 {
			continue
		}
		weekendAvg := s.weekendSum / float64(len(s.weekendDays))
		weekdayAvg := s.weekdaySum / float64(len(s.weekdayDays))

		switch {
		case weekendAvg > weekdayAvg*(1+patternThreshold):
			insights = append(insights, Insight{
				Category:   category,
				Message:    fmt.Sprintf("You spend more on %s on weekends", category),
				WeekendAvg: weekendAvg,
				WeekdayAvg: weekdayAvg,
			})
		case weekdayAvg > weekendAvg*(1+patternThreshold):
			insights = append(insights, Insight{
				Category:   category,
				Message:    fmt.Sprintf("You spend more on %s on weekdays", category),
				WeekendAvg: weekendAvg,
				WeekdayAvg: weekdayAvg,
			})
		}
	}
	return insights
}

// FindTopSpendingCategory returns the category with the largest total
// and its share of overall spend. Returns nil when there are no
// expenses. Ties resolve to the alphabetically first category.
func FindTopSpendingCategory(rows []*store.ExpenseRow) *CategorySummary {
	if len(rows) == 0 {
		return nil
	}

	totals := make(map[string]float64)
	var overall float64
	for _, row := range rows {
		amount := amountOf(row)
		totals[categoryOrOther(row.Category)] += amount
		overall += amount
	}

	categories := make([]string, 0, len(totals))
	for category := range totals {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	top := categories[0]
	for _, category := range categories[1:] {
		if totals[category] > totals[top] {
			top = category
		}
	}

	summary := &CategorySummary{Category: top, Total: totals[top]}
	if overall > 0 {
		summary.Percentage = totals[top] / overall * 100
	}
	return summary
}

func categoryOrOther(category string) string {
	if category == "" {
		return string(extract.CategoryOther)
	}
	return category
}

func amountOf(row *store.ExpenseRow) float64 {
	if row.Amount == nil {
		return 0
	}
	f, _ := row.Amount.Float64()
	return f
}

func isWeekend(t time.Time) bool {
	switch mealtime.BusinessTime(t).Weekday() {
	case time.Saturday, time.Sunday:
		return true
	default:
		return false
	}
}
