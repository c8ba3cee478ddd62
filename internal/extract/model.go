// Package extract turns (subject, body) pairs from bank and delivery
// notification emails into structured transactions. Two strategies are
// tried in order: a Gemini-backed extractor and per-sender pattern
// parsers. First success wins.
package extract

import (
	"errors"
	"strings"
	"time"
)

// SourceEmail marks transactions produced by the email ingestion path.
const SourceEmail = "email"

// businessZone is the timezone bank notifications quote local times in.
var businessZone = time.FixedZone("UTC+7", 7*60*60)

// ErrSkip is returned by the LLM extractor when the model decides the
// message is not a completed transaction (pending order, promotion).
// A skip is terminal: the dispatcher does not fall back to the pattern
// parsers for it.
var ErrSkip = errors.New("extract: message is not a completed transaction")

// Category is the fixed spending taxonomy.
type Category string

const (
	CategoryFood          Category = "Food"
	CategoryTransport     Category = "Transport"
	CategoryShopping      Category = "Shopping"
	CategoryEntertainment Category = "Entertainment"
	CategoryBills         Category = "Bills"
	CategoryHealth        Category = "Health"
	CategoryOther         Category = "Other"
)

var allCategories = []Category{
	CategoryFood,
	CategoryTransport,
	CategoryShopping,
	CategoryEntertainment,
	CategoryBills,
	CategoryHealth,
	CategoryOther,
}

// NormalizeCategory maps free-form model output onto the fixed
// taxonomy. Anything unrecognized (e.g. "Groceries") becomes Other.
func NormalizeCategory(s string) Category {
	needle := strings.ToLower(strings.TrimSpace(s))
	for _, c := range allCategories {
		if needle == strings.ToLower(string(c)) {
			return c
		}
	}
	return CategoryOther
}

// ParsedTransaction is the normalized output of either extraction
// strategy. Amount is the final total paid, never a subtotal or line
// item. Records are append-only once persisted.
type ParsedTransaction struct {
	TransactionType string    `json:"transactionType"`
	Amount          float64   `json:"amount"`
	Currency        string    `json:"currency"`
	TransactionDate time.Time `json:"transactionDate"`
	Merchant        string    `json:"merchant"`
	Category        Category  `json:"category"`
	Source          string    `json:"source"`
	EmailSubject    string    `json:"emailSubject"`
	EmailUID        string    `json:"emailUid,omitempty"`
	EmailAccount    string    `json:"emailAccount,omitempty"`
}
