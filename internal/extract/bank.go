package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// patternParser is one deterministic per-sender extraction strategy.
// Parse returns nil when a required field cannot be located; with the
// amount of format drift in notification templates that is an expected
// outcome, not an error.
type patternParser interface {
	Name() string
	Matches(sender, subject, body string) bool
	Parse(subject, body string, received time.Time) *ParsedTransaction
}

// bankParser extracts transactions from Timo bank notification emails.
// The template carries labeled fields, with both Vietnamese and English
// variants in circulation.
type bankParser struct{}

var (
	bankSenderRe  = regexp.MustCompile(`(?i)@timo\.vn$`)
	bankSubjectRe = regexp.MustCompile(`(?i)\btimo\b`)

	bankTypeRe = regexp.MustCompile(`(?im)^\W*(?:giao d[iị]ch|transaction(?: type)?|lo[aạ]i giao d[iị]ch)\s*[:：]\s*(.+?)\s*$`)
	// Value line: "Gia tri: ₫38,000" / "Value: 38,000 VND" / "Amount: 38.000 VND"
	bankAmountRe = regexp.MustCompile(`(?im)^\W*(?:gi[aá] tr[iị]|s[oố] ti[eề]n|value|amount)\s*[:：]\s*(₫)?\s*([\d.,]+)\s*(VND|₫|[A-Z]{3})?\s*$`)
	bankTimeRe   = regexp.MustCompile(`(?im)^\W*(?:th[oờ]i gian|time|date)\s*[:：]\s*(.+?)\s*$`)
	bankPlaceRe  = regexp.MustCompile(`(?im)^\W*(?:n[oộ]i dung|[dđ]i[eể]m giao d[iị]ch|merchant|location|t[aạ]i)\s*[:：]\s*(.+?)\s*$`)

	bankPendingRe = regexp.MustCompile(`(?i)(?:[dđ]ang ch[oờ] x[uử] l[yý]|pending|scheduled transaction|s[eẽ] [dđ][uư][oợ]c th[uự]c hi[eệ]n)`)
)

// bankTimeFormats covers the localized numeric form and the English
// long form seen across template revisions.
var bankTimeFormats = []string{
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"Jan 2, 2006 15:04",
	"Jan 2, 2006 3:04 PM",
	"2006-01-02 15:04:05",
}

func (p *bankParser) Name() string { return "timo" }

func (p *bankParser) Matches(sender, subject, body string) bool {
	if bankSenderRe.MatchString(strings.TrimSpace(sender)) {
		return true
	}
	return bankSubjectRe.MatchString(subject)
}

func (p *bankParser) Parse(subject, body string, received time.Time) *ParsedTransaction {
	if bankPendingRe.MatchString(body) {
		return nil
	}

	amountMatch := bankAmountRe.FindStringSubmatch(body)
	if amountMatch == nil {
		return nil
	}
	amount, ok := parseLocalizedAmount(amountMatch[2])
	if !ok {
		return nil
	}
	currency := normalizeCurrency(amountMatch[1], amountMatch[3])

	timeMatch := bankTimeRe.FindStringSubmatch(body)
	if timeMatch == nil {
		return nil
	}
	txDate, ok := parseBankTimestamp(timeMatch[1])
	if !ok {
		return nil
	}

	txType := "Card payment"
	if m := bankTypeRe.FindStringSubmatch(body); m != nil {
		txType = strings.TrimSpace(m[1])
	}

	merchant := ""
	if m := bankPlaceRe.FindStringSubmatch(body); m != nil {
		merchant = strings.TrimSpace(m[1])
	}
	if merchant == "" {
		merchant = strings.TrimSpace(subject)
	}

	return &ParsedTransaction{
		TransactionType: txType,
		Amount:          amount,
		Currency:        currency,
		TransactionDate: txDate,
		Merchant:        merchant,
		Category:        InferCategory(txType, merchant),
		Source:          SourceEmail,
	}
}

func parseBankTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, format := range bankTimeFormats {
		if t, err := time.ParseInLocation(format, s, businessZone); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// A dot is a thousands separator when every group after it has exactly
// three digits.
var dotThousandsRe = regexp.MustCompile(`^\d{1,3}(\.\d{3})+$`)

// parseLocalizedAmount handles both "38,000" and the Vietnamese
// thousands style "38.000".
func parseLocalizedAmount(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	if dotThousandsRe.MatchString(s) {
		s = strings.ReplaceAll(s, ".", "")
	}
	amount, err := strconv.ParseFloat(s, 64)
	if err != nil || amount <= 0 {
		return 0, false
	}
	return amount, true
}

// normalizeCurrency maps the ₫ symbol and a missing code onto VND. A
// leading ₫ wins over whatever trails the digits.
func normalizeCurrency(symbol, code string) string {
	if strings.TrimSpace(symbol) == "₫" {
		return "VND"
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" || code == "₫" {
		return "VND"
	}
	return code
}
