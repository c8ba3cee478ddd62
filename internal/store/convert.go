package store

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/tqhuy/finfit/internal/extract"
	"github.com/tqhuy/finfit/internal/mealtime"
)

// NewExpenseRow maps a parsed transaction onto its BigQuery row. The
// calendar date is derived in the business timezone so a late-evening
// UTC timestamp does not land on the wrong day.
func NewExpenseRow(tx *extract.ParsedTransaction, userID string, now time.Time) *ExpenseRow {
	amount := new(big.Rat)
	amount.SetFloat64(tx.Amount)

	return &ExpenseRow{
		ExpenseID:       uuid.New().String(),
		UserID:          userID,
		TransactionType: tx.TransactionType,
		Amount:          amount,
		Currency:        tx.Currency,
		TransactionDate: civil.DateOf(mealtime.BusinessTime(tx.TransactionDate)),
		TransactionTS:   tx.TransactionDate,
		Merchant:        tx.Merchant,
		Category:        string(tx.Category),
		Source:          tx.Source,
		EmailSubject:    nullString(tx.EmailSubject),
		EmailUID:        nullString(tx.EmailUID),
		EmailAccount:    nullString(tx.EmailAccount),
		CreatedTS:       now,
	}
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}
