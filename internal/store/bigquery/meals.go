package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/avast/retry-go"

	"github.com/tqhuy/finfit/internal/store"
)

const mealsTable = "meals"

// InsertMealsWithClient inserts a batch of MealRow using the provided
// BigQuery client.
func InsertMealsWithClient(ctx context.Context, client *bigquery.Client, datasetID string, rows []*store.MealRow) error {
	if len(rows) == 0 {
		return nil
	}

	inserter := client.Dataset(datasetID).Table(mealsTable).Inserter()
	err := retry.Do(
		func() error { return inserter.Put(ctx, rows) },
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.Context(ctx),
	)
	if err != nil {
		return fmt.Errorf("InsertMeals: inserting rows: %w", err)
	}
	return nil
}
