// Package notionsync mirrors stored expenses into a Notion database
// so spending can be reviewed in Notion alongside manual notes.
package notionsync

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go"
	"github.com/jomei/notionapi"

	"github.com/tqhuy/finfit/internal/logger"
	"github.com/tqhuy/finfit/internal/store"
)

// SyncStats summarizes one export run.
type SyncStats struct {
	Created int
	Skipped int
}

// SyncExpenses exports a user's expenses in the given date range to a
// Notion database. The Expense ID title keeps the export idempotent:
// rows whose ID already exists as a page are skipped, so re-running
// over an overlapping range never duplicates pages.
func SyncExpenses(ctx context.Context, repo store.ExpenseRepository, notionClient NotionService, notionDBID, userID string, startDate, endDate time.Time, dryRun bool) (*SyncStats, error) {
	log := logger.FromContext(ctx)

	log.Info().
		Time("start_date", startDate).
		Time("end_date", endDate).
		Bool("dry_run", dryRun).
		Msg("Starting expense sync to Notion")

	expenses, err := repo.QueryExpensesByDateRange(ctx, userID, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("SyncExpenses: query expenses: %w", err)
	}

	log.Info().Int("expense_count", len(expenses)).Msg("Retrieved expenses from BigQuery")

	pages, err := queryAllNotionPages(ctx, notionClient, notionDBID)
	if err != nil {
		return nil, fmt.Errorf("SyncExpenses: query Notion pages: %w", err)
	}

	existing := make(map[string]bool, len(pages))
	for _, page := range pages {
		if id := extractExpenseID(page); id != "" {
			existing[id] = true
		}
	}

	stats := &SyncStats{}
	for _, row := range expenses {
		if existing[row.ExpenseID] {
			stats.Skipped++
			continue
		}

		if dryRun {
			log.Info().
				Str("expense_id", row.ExpenseID).
				Str("merchant", row.Merchant).
				Msg("[DRY RUN] Would create Notion page")
			stats.Created++
			continue
		}

		props := ExpenseToNotionProperties(row)
		err := retry.Do(
			func() error {
				_, err := notionClient.CreatePage(ctx, notionDBID, props)
				return err
			},
			retry.Attempts(3),
			retry.Delay(time.Second),
			retry.Context(ctx),
		)
		if err != nil {
			log.Warn().
				Err(err).
				Str("expense_id", row.ExpenseID).
				Msg("Failed to create Notion page")
			continue
		}
		stats.Created++
	}

	log.Info().
		Int("created", stats.Created).
		Int("skipped", stats.Skipped).
		Msg("Expense sync to Notion complete")
	return stats, nil
}

// queryAllNotionPages pages through the whole database.
func queryAllNotionPages(ctx context.Context, notionClient NotionService, notionDBID string) ([]notionapi.Page, error) {
	var pages []notionapi.Page
	req := &notionapi.DatabaseQueryRequest{PageSize: 100}

	for {
		resp, err := notionClient.QueryDatabase(ctx, notionDBID, req)
		if err != nil {
			return nil, err
		}
		pages = append(pages, resp.Results...)

		if !resp.HasMore {
			return pages, nil
		}
		req.StartCursor = notionapi.Cursor(resp.NextCursor)
	}
}
