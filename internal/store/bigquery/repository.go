// Package bigquery implements the store repositories on BigQuery.
package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"

	"github.com/tqhuy/finfit/internal/store"
)

// Repository is the concrete implementation of the store interfaces
// backed by BigQuery. It holds a shared client to avoid creating a new
// connection for each operation.
type Repository struct {
	client    *bigquery.Client
	datasetID string
}

// NewRepository creates a Repository with a shared BigQuery client.
func NewRepository(ctx context.Context, projectID, datasetID string) (*Repository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: creating client: %w", err)
	}
	return &Repository{client: client, datasetID: datasetID}, nil
}

// Close closes the BigQuery client connection.
func (r *Repository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

func (r *Repository) InsertExpenses(ctx context.Context, rows []*store.ExpenseRow) error {
	return InsertExpensesWithClient(ctx, r.client, r.datasetID, rows)
}

func (r *Repository) QueryExpensesByDateRange(ctx context.Context, userID string, start, end time.Time) ([]*store.ExpenseRow, error) {
	return QueryExpensesByDateRangeWithClient(ctx, r.client, r.datasetID, userID, start, end)
}

func (r *Repository) InsertMeals(ctx context.Context, rows []*store.MealRow) error {
	return InsertMealsWithClient(ctx, r.client, r.datasetID, rows)
}

func (r *Repository) LoadWatermarks(ctx context.Context) (map[string]struct{}, error) {
	return LoadWatermarksWithClient(ctx, r.client, r.datasetID)
}

func (r *Repository) RecordWatermarks(ctx context.Context, rows []*store.ProcessedEmailRow) error {
	return RecordWatermarksWithClient(ctx, r.client, r.datasetID, rows)
}
