// Package store defines the persistence surface of the app: row types
// and the repository interfaces the ingestion and API layers depend on.
package store

import (
	"context"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
)

// ExpenseRow represents an expense record in BigQuery.
type ExpenseRow struct {
	ExpenseID string `bigquery:"expense_id"` // REQUIRED
	UserID    string `bigquery:"user_id"`    // REQUIRED

	TransactionType string     `bigquery:"transaction_type"`
	Amount          *big.Rat   `bigquery:"amount"`   // REQUIRED NUMERIC
	Currency        string     `bigquery:"currency"` // REQUIRED
	TransactionDate civil.Date `bigquery:"transaction_date"`
	TransactionTS   time.Time  `bigquery:"transaction_ts"`

	Merchant string `bigquery:"merchant"`
	Category string `bigquery:"category"`
	Source   string `bigquery:"source"`

	EmailSubject bigquery.NullString `bigquery:"email_subject"` // NULLABLE
	EmailUID     bigquery.NullString `bigquery:"email_uid"`     // NULLABLE
	EmailAccount bigquery.NullString `bigquery:"email_account"` // NULLABLE

	CreatedTS time.Time `bigquery:"created_ts"`
}

// MealRow represents a meal record with its nutrition estimate.
type MealRow struct {
	MealID    string              `bigquery:"meal_id"` // REQUIRED
	UserID    string              `bigquery:"user_id"` // REQUIRED
	ExpenseID bigquery.NullString `bigquery:"expense_id"`

	Description string     `bigquery:"description"`
	MealTime    string     `bigquery:"meal_time"`
	MealDate    civil.Date `bigquery:"meal_date"`

	Calories float64 `bigquery:"calories"`
	Protein  float64 `bigquery:"protein"`
	Carbs    float64 `bigquery:"carbs"`
	Fat      float64 `bigquery:"fat"`

	Confidence     string              `bigquery:"confidence"`
	EstimateSource bigquery.NullString `bigquery:"estimate_source"`
	Reasoning      bigquery.NullString `bigquery:"reasoning"`

	CreatedTS time.Time `bigquery:"created_ts"`
}

// ProcessedEmailRow is one watermark entry: a message whose ingestion
// reached a terminal outcome.
type ProcessedEmailRow struct {
	EmailAccount string    `bigquery:"email_account"` // REQUIRED
	EmailUID     string    `bigquery:"email_uid"`     // REQUIRED
	ProcessedTS  time.Time `bigquery:"processed_ts"`
}

// ExpenseRepository provides expense-related database operations.
type ExpenseRepository interface {
	// InsertExpenses inserts a batch of ExpenseRow.
	InsertExpenses(ctx context.Context, rows []*ExpenseRow) error

	// QueryExpensesByDateRange returns a user's expenses whose
	// transaction date falls inside [start, end], ordered by date.
	QueryExpensesByDateRange(ctx context.Context, userID string, start, end time.Time) ([]*ExpenseRow, error)
}

// MealRepository provides meal-related database operations.
type MealRepository interface {
	// InsertMeals inserts a batch of MealRow.
	InsertMeals(ctx context.Context, rows []*MealRow) error
}

// WatermarkRepository tracks which messages were already ingested.
type WatermarkRepository interface {
	// LoadWatermarks returns the set of "<account>:<uid>" keys already
	// recorded.
	LoadWatermarks(ctx context.Context) (map[string]struct{}, error)

	// RecordWatermarks persists newly resolved messages.
	RecordWatermarks(ctx context.Context, rows []*ProcessedEmailRow) error
}
