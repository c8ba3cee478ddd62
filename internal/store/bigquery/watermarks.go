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

const processedEmailsTable = "processed_emails"

// LoadWatermarksWithClient returns every "<account>:<uid>" key already
// recorded. The table stays small enough (bounded by the mailbox search
// window times run frequency) that a full scan is fine.
func LoadWatermarksWithClient(ctx context.Context, client *bigquery.Client, datasetID string) (map[string]struct{}, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT email_account, email_uid, processed_ts
		FROM %s.%s
	`, datasetID, processedEmailsTable))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("LoadWatermarks: query read: %w", err)
	}

	seen := make(map[string]struct{})
	for {
		var r store.ProcessedEmailRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("LoadWatermarks: iter next: %w", err)
		}
		seen[r.EmailAccount+":"+r.EmailUID] = struct{}{}
	}
	return seen, nil
}

// RecordWatermarksWithClient persists newly resolved messages.
func RecordWatermarksWithClient(ctx context.Context, client *bigquery.Client, datasetID string, rows []*store.ProcessedEmailRow) error {
	if len(rows) == 0 {
		return nil
	}

	inserter := client.Dataset(datasetID).Table(processedEmailsTable).Inserter()
	err := retry.Do(
		func() error { return inserter.Put(ctx, rows) },
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.Context(ctx),
	)
	if err != nil {
		return fmt.Errorf("RecordWatermarks: inserting rows: %w", err)
	}
	return nil
}
