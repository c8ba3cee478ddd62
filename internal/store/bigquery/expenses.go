package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/avast/retry-go"
	"google.golang.org/api/iterator"

	"github.com/tqhuy/finfit/internal/store"
)

const (
	expensesTable = "expenses"
	dateFormat    = "2006-01-02"
)

// InsertExpensesWithClient inserts a batch of ExpenseRow using the
// provided BigQuery client. Streaming inserts fail transiently often
// enough that the call is retried with backoff.
func InsertExpensesWithClient(ctx context.Context, client *bigquery.Client, datasetID string, rows []*store.ExpenseRow) error {
	if len(rows) == 0 {
		return nil
	}

	inserter := client.Dataset(datasetID).Table(expensesTable).Inserter()
	err := retry.Do(
		func() error { return inserter.Put(ctx, rows) },
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.Context(ctx),
	)
	if err != nil {
		return fmt.Errorf("InsertExpenses: inserting rows: %w", err)
	}
	return nil
}

// QueryExpensesByDateRangeWithClient returns a user's expenses whose
// transaction date falls inside [start, end], ordered by date.
func QueryExpensesByDateRangeWithClient(ctx context.Context, client *bigquery.Client, datasetID, userID string, start, end time.Time) ([]*store.ExpenseRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			expense_id,
			user_id,
			transaction_type,
			amount,
			currency,
			transaction_date,
			transaction_ts,
			merchant,
			category,
			source,
			email_subject,
			email_uid,
			email_account,
			created_ts
		FROM %s.%s
		WHERE user_id = @user_id
		  AND transaction_date >= @start_date
		  AND transaction_date <= @end_date
		ORDER BY transaction_date, transaction_ts
	`, datasetID, expensesTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "start_date", Value: start.Format(dateFormat)},
		{Name: "end_date", Value: end.Format(dateFormat)},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QueryExpensesByDateRange: query read: %w", err)
	}

	var rows []*store.ExpenseRow
	for {
		var r store.ExpenseRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QueryExpensesByDateRange: iter next: %w", err)
		}
		rows = append(rows, &r)
	}
	return rows, nil
}
