package extract

import (
	"regexp"
	"strings"
	"time"
)

// rideParser extracts totals from Grab e-receipt emails, covering both
// ride and GrabFood order receipts.
type rideParser struct{}

var (
	rideSenderRe  = regexp.MustCompile(`(?i)@grab\.com$`)
	rideSubjectRe = regexp.MustCompile(`(?i)\bgrab(?:food|bike|car)?\b.*(?:receipt|e-receipt)|(?:receipt|e-receipt).*\bgrab\b`)

	// The final charged total. Subtotal and fee lines are deliberately
	// not matched; the amount must be the total paid.
	rideTotalRe = regexp.MustCompile(`(?im)^\W*total(?:\s+paid|\s+\(incl\.?[^)]*\))?\s*[:：]?\s*(₫)?\s*([\d.,]+)\s*(VND|₫|[A-Z]{3})?\s*$`)

	rideMerchantRe = regexp.MustCompile(`(?im)^\W*(?:order from|picked up from|restaurant|merchant)\s*[:：]?\s*(.+?)\s*$`)
	rideDateRe     = regexp.MustCompile(`(?im)^\W*(?:date|booking date|order time)\s*[:：]?\s*(.+?)\s*$`)

	ridePendingRe = regexp.MustCompile(`(?i)(?:order (?:has been )?placed|being prepared|looking for a driver|confirming your order)`)
)

var rideTimeFormats = []string{
	"2 Jan 06 15:04",
	"02 Jan 2006 15:04",
	"Jan 2, 2006 15:04",
	"02/01/2006 15:04",
}

func (p *rideParser) Name() string { return "grab" }

func (p *rideParser) Matches(sender, subject, body string) bool {
	if rideSenderRe.MatchString(strings.TrimSpace(sender)) {
		return true
	}
	return rideSubjectRe.MatchString(subject)
}

func (p *rideParser) Parse(subject, body string, received time.Time) *ParsedTransaction {
	if ridePendingRe.MatchString(body) {
		return nil
	}

	totalMatch := rideTotalRe.FindStringSubmatch(body)
	if totalMatch == nil {
		return nil
	}
	amount, ok := parseLocalizedAmount(totalMatch[2])
	if !ok {
		return nil
	}
	currency := normalizeCurrency(totalMatch[1], totalMatch[3])

	txDate := received
	if m := rideDateRe.FindStringSubmatch(body); m != nil {
		if parsed, ok := parseRideTimestamp(m[1]); ok {
			txDate = parsed
		}
	}
	if txDate.IsZero() {
		return nil
	}

	txType := "Ride"
	merchant := "Grab"
	if m := rideMerchantRe.FindStringSubmatch(body); m != nil {
		merchant = strings.TrimSpace(m[1])
		txType = "Food order"
	} else if isFoodReceipt(subject, body) {
		txType = "Food order"
	}

	return &ParsedTransaction{
		TransactionType: txType,
		Amount:          amount,
		Currency:        currency,
		TransactionDate: txDate,
		Merchant:        merchant,
		Category:        InferCategory(txType, merchant+" "+subject),
		Source:          SourceEmail,
	}
}

func isFoodReceipt(subject, body string) bool {
	s := strings.ToLower(subject + " " + body)
	return strings.Contains(s, "grabfood") || strings.Contains(s, "food order")
}

func parseRideTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, format := range rideTimeFormats {
		if t, err := time.ParseInLocation(format, s, businessZone); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
