// Package ingest runs the end-to-end sync: read mailboxes, extract
// transactions, persist expenses, derive meals for food purchases and
// advance the dedup watermark.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tqhuy/finfit/internal/config"
	"github.com/tqhuy/finfit/internal/extract"
	"github.com/tqhuy/finfit/internal/mailbox"
	"github.com/tqhuy/finfit/internal/mealtime"
	"github.com/tqhuy/finfit/internal/nutrition"
	"github.com/tqhuy/finfit/internal/store"
)

// batchHint gives the nutritionist model the provenance of the meal
// descriptions.
const batchHint = "Food orders from delivery/restaurant transactions"

// ErrAllMailboxesFailed reports that no mailbox could be read at all.
var ErrAllMailboxesFailed = errors.New("all mailboxes failed")

// MailboxReader pulls new transactions out of one mailbox.
type MailboxReader interface {
	FetchNew(ctx context.Context, cfg config.MailboxConfig, seen mailbox.WatermarkSet) (*mailbox.FetchResult, error)
}

// SyncResult summarizes one sync run.
type SyncResult struct {
	NewExpenses  int `json:"newExpenses"`
	MealsCreated int `json:"mealsCreated"`
}

// Orchestrator coordinates one sync run across all configured
// mailboxes.
type Orchestrator struct {
	cfg        *config.Config
	reader     MailboxReader
	expenses   store.ExpenseRepository
	meals      store.MealRepository
	watermarks store.WatermarkRepository
	estimator  nutrition.Estimator
	log        zerolog.Logger
	now        func() time.Time
}

func NewOrchestrator(
	cfg *config.Config,
	reader MailboxReader,
	expenses store.ExpenseRepository,
	meals store.MealRepository,
	watermarks store.WatermarkRepository,
	estimator nutrition.Estimator,
	log zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		reader:     reader,
		expenses:   expenses,
		meals:      meals,
		watermarks: watermarks,
		estimator:  estimator,
		log:        log,
		now:        time.Now,
	}
}

// RunSync executes one full sync. Mailboxes are read concurrently and
// a failing mailbox only skips its own messages; the run errors out
// only when every mailbox fails. Meal derivation is best effort: an
// estimation or meal-insert failure never rolls back the expenses.
func (o *Orchestrator) RunSync(ctx context.Context) (*SyncResult, error) {
	if len(o.cfg.Mailboxes) == 0 {
		return &SyncResult{}, nil
	}

	seenMap, err := o.watermarks.LoadWatermarks(ctx)
	if err != nil {
		return nil, fmt.Errorf("RunSync: %w", err)
	}
	seen := mailbox.WatermarkSet(seenMap)

	type outcome struct {
		account string
		result  *mailbox.FetchResult
	}

	var (
		mu       sync.Mutex
		outcomes []outcome
		failed   int
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, mb := range o.cfg.Mailboxes {
		mb := mb
		g.Go(func() error {
			result, err := o.reader.FetchNew(gctx, mb, seen)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				o.log.Error().Str("account", mb.Username).Err(err).Msg("mailbox sync failed")
				return nil
			}
			outcomes = append(outcomes, outcome{account: mb.Username, result: result})
			return nil
		})
	}
	_ = g.Wait()

	if failed == len(o.cfg.Mailboxes) {
		return nil, fmt.Errorf("RunSync: %w: %d mailboxes", ErrAllMailboxesFailed, failed)
	}

	var (
		transactions []*extract.ParsedTransaction
		processed    []*store.ProcessedEmailRow
	)
	now := o.now()
	for _, out := range outcomes {
		transactions = append(transactions, out.result.Transactions...)
		for _, uid := range out.result.SeenUIDs {
			processed = append(processed, &store.ProcessedEmailRow{
				EmailAccount: out.account,
				EmailUID:     uid,
				ProcessedTS:  now,
			})
		}
	}

	rows := make([]*store.ExpenseRow, 0, len(transactions))
	for _, tx := range transactions {
		rows = append(rows, store.NewExpenseRow(tx, o.cfg.UserID, now))
	}
	if err := o.expenses.InsertExpenses(ctx, rows); err != nil {
		// Nothing is watermarked, so the whole batch is retried next run.
		return nil, fmt.Errorf("RunSync: %w", err)
	}

	mealsCreated := o.deriveMeals(ctx, rows)

	if err := o.watermarks.RecordWatermarks(ctx, processed); err != nil {
		return nil, fmt.Errorf("RunSync: %w", err)
	}

	result := &SyncResult{NewExpenses: len(rows), MealsCreated: mealsCreated}
	o.log.Info().
		Int("newExpenses", result.NewExpenses).
		Int("mealsCreated", result.MealsCreated).
		Msg("sync run complete")
	return result, nil
}

// deriveMeals estimates nutrition for the food expenses and records a
// meal per expense. Failures are logged and reported as zero meals.
func (o *Orchestrator) deriveMeals(ctx context.Context, rows []*store.ExpenseRow) int {
	if o.estimator == nil {
		return 0
	}

	var food []*store.ExpenseRow
	for _, row := range rows {
		if row.Category == string(extract.CategoryFood) {
			food = append(food, row)
		}
	}
	if len(food) == 0 {
		return 0
	}

	estimates, err := o.estimateFood(ctx, food)
	if err != nil {
		o.log.Error().Err(err).Int("meals", len(food)).Msg("nutrition estimation failed, expenses kept without meals")
		return 0
	}

	now := o.now()
	mealRows := make([]*store.MealRow, 0, len(food))
	for i, row := range food {
		est := estimates[i]
		mealRows = append(mealRows, &store.MealRow{
			MealID:         uuid.New().String(),
			UserID:         row.UserID,
			ExpenseID:      bigquery.NullString{StringVal: row.ExpenseID, Valid: true},
			Description:    row.Merchant,
			MealTime:       string(mealtime.Classify(row.TransactionTS)),
			MealDate:       civil.DateOf(mealtime.BusinessTime(row.TransactionTS)),
			Calories:       est.Calories,
			Protein:        est.Protein,
			Carbs:          est.Carbs,
			Fat:            est.Fat,
			Confidence:     est.Confidence,
			EstimateSource: bigquery.NullString{StringVal: est.Source, Valid: est.Source != ""},
			Reasoning:      bigquery.NullString{StringVal: est.Reasoning, Valid: est.Reasoning != ""},
			CreatedTS:      now,
		})
	}

	if err := o.meals.InsertMeals(ctx, mealRows); err != nil {
		o.log.Error().Err(err).Msg("meal insert failed, expenses kept without meals")
		return 0
	}
	return len(mealRows)
}

// estimateFood batches the model round trips: a single food purchase
// uses the one-shot call, anything more goes out as one batch.
func (o *Orchestrator) estimateFood(ctx context.Context, food []*store.ExpenseRow) ([]*nutrition.Estimate, error) {
	if len(food) == 1 {
		est, err := o.estimator.Estimate(ctx, food[0].Merchant, batchHint)
		if err != nil {
			return nil, err
		}
		return []*nutrition.Estimate{est}, nil
	}

	descriptions := make([]string, 0, len(food))
	for _, row := range food {
		descriptions = append(descriptions, row.Merchant)
	}
	estimates, err := o.estimator.EstimateBatch(ctx, descriptions, batchHint)
	if err != nil {
		return nil, err
	}
	if len(estimates) != len(food) {
		return nil, fmt.Errorf("estimateFood: got %d estimates for %d meals", len(estimates), len(food))
	}
	return estimates, nil
}
