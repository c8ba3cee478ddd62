package ingest

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/tqhuy/finfit/internal/config"
	"github.com/tqhuy/finfit/internal/extract"
	"github.com/tqhuy/finfit/internal/logger"
	"github.com/tqhuy/finfit/internal/mailbox"
	"github.com/tqhuy/finfit/internal/nutrition"
	"github.com/tqhuy/finfit/internal/store"
)

var (
	lunchTime  = time.Date(2025, 8, 28, 12, 15, 0, 0, time.FixedZone("UTC+7", 7*60*60))
	dinnerTime = time.Date(2025, 8, 28, 19, 30, 0, 0, time.FixedZone("UTC+7", 7*60*60))
)

func foodTx(merchant string, at time.Time, uid string) *extract.ParsedTransaction {
	return &extract.ParsedTransaction{
		TransactionType: "Food order",
		Amount:          87000,
		Currency:        "VND",
		TransactionDate: at,
		Merchant:        merchant,
		Category:        extract.CategoryFood,
		Source:          extract.SourceEmail,
		EmailUID:        uid,
	}
}

func rideTx(uid string) *extract.ParsedTransaction {
	return &extract.ParsedTransaction{
		TransactionType: "Ride",
		Amount:          32000,
		Currency:        "VND",
		TransactionDate: lunchTime,
		Merchant:        "GRAB",
		Category:        extract.CategoryTransport,
		Source:          extract.SourceEmail,
		EmailUID:        uid,
	}
}

type fakeReader struct {
	results map[string]*mailbox.FetchResult
	errs    map[string]error
}

func (f *fakeReader) FetchNew(ctx context.Context, cfg config.MailboxConfig, seen mailbox.WatermarkSet) (*mailbox.FetchResult, error) {
	if err := f.errs[cfg.Username]; err != nil {
		return nil, err
	}
	if r := f.results[cfg.Username]; r != nil {
		return r, nil
	}
	return &mailbox.FetchResult{}, nil
}

type fakeExpenseRepo struct {
	inserted []*store.ExpenseRow
	err      error
}

func (f *fakeExpenseRepo) InsertExpenses(ctx context.Context, rows []*store.ExpenseRow) error {
	if f.err != nil {
		return f.err
	}
	f.inserted = append(f.inserted, rows...)
	return nil
}

func (f *fakeExpenseRepo) QueryExpensesByDateRange(ctx context.Context, userID string, start, end time.Time) ([]*store.ExpenseRow, error) {
	return f.inserted, nil
}

type fakeMealRepo struct {
	inserted []*store.MealRow
	calls    int
	err      error
}

func (f *fakeMealRepo) InsertMeals(ctx context.Context, rows []*store.MealRow) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.inserted = append(f.inserted, rows...)
	return nil
}

type fakeWatermarkRepo struct {
	existing map[string]struct{}
	recorded []*store.ProcessedEmailRow
	loadErr  error
	saveErr  error
}

func (f *fakeWatermarkRepo) LoadWatermarks(ctx context.Context) (map[string]struct{}, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	if f.existing == nil {
		return map[string]struct{}{}, nil
	}
	return f.existing, nil
}

func (f *fakeWatermarkRepo) RecordWatermarks(ctx context.Context, rows []*store.ProcessedEmailRow) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.recorded = append(f.recorded, rows...)
	return nil
}

type fakeEstimator struct {
	singleCalls []string
	batchCalls  [][]string
	err         error
}

func (f *fakeEstimator) Estimate(ctx context.Context, description, hint string) (*nutrition.Estimate, error) {
	f.singleCalls = append(f.singleCalls, description)
	if f.err != nil {
		return nil, f.err
	}
	return &nutrition.Estimate{Calories: 500, Confidence: nutrition.ConfidenceMedium, Source: "fake"}, nil
}

func (f *fakeEstimator) EstimateBatch(ctx context.Context, descriptions []string, hint string) ([]*nutrition.Estimate, error) {
	f.batchCalls = append(f.batchCalls, descriptions)
	if f.err != nil {
		return nil, f.err
	}
	estimates := make([]*nutrition.Estimate, 0, len(descriptions))
	for range descriptions {
		estimates = append(estimates, &nutrition.Estimate{Calories: 500, Confidence: nutrition.ConfidenceMedium, Source: "fake"})
	}
	return estimates, nil
}

type fixture struct {
	orch       *Orchestrator
	expenses   *fakeExpenseRepo
	meals      *fakeMealRepo
	watermarks *fakeWatermarkRepo
	estimator  *fakeEstimator
}

func newFixture(accounts []string, reader MailboxReader) *fixture {
	cfg := &config.Config{UserID: "user-1"}
	for _, account := range accounts {
		cfg.Mailboxes = append(cfg.Mailboxes, config.MailboxConfig{
			Host:     "imap.example.com",
			Username: account,
		})
	}
	f := &fixture{
		expenses:   &fakeExpenseRepo{},
		meals:      &fakeMealRepo{},
		watermarks: &fakeWatermarkRepo{},
		estimator:  &fakeEstimator{},
	}
	f.orch = NewOrchestrator(cfg, reader, f.expenses, f.meals, f.watermarks, f.estimator, logger.NewWithWriter(io.Discard))
	return f
}

func TestRunSyncHappyPath(t *testing.T) {
	reader := &fakeReader{results: map[string]*mailbox.FetchResult{
		"a@example.com": {
			Transactions: []*extract.ParsedTransaction{foodTx("Bun Cha Huong Lien", lunchTime, "1"), rideTx("2")},
			SeenUIDs:     []string{"1", "2", "3"},
		},
	}}
	f := newFixture([]string{"a@example.com"}, reader)

	result, err := f.orch.RunSync(context.Background())
	if err != nil {
		t.Fatalf("RunSync returned error: %v", err)
	}
	if result.NewExpenses != 2 {
		t.Errorf("Expected 2 new expenses, got %d", result.NewExpenses)
	}
	if result.MealsCreated != 1 {
		t.Errorf("Expected 1 meal, got %d", result.MealsCreated)
	}
	if len(f.expenses.inserted) != 2 {
		t.Fatalf("Expected 2 inserted expenses, got %d", len(f.expenses.inserted))
	}
	if len(f.watermarks.recorded) != 3 {
		t.Fatalf("Expected 3 watermark rows, got %d", len(f.watermarks.recorded))
	}
	if f.watermarks.recorded[0].EmailAccount != "a@example.com" {
		t.Errorf("Expected watermark account a@example.com, got %q", f.watermarks.recorded[0].EmailAccount)
	}

	if len(f.meals.inserted) != 1 {
		t.Fatalf("Expected 1 meal row, got %d", len(f.meals.inserted))
	}
	meal := f.meals.inserted[0]
	if meal.Description != "Bun Cha Huong Lien" {
		t.Errorf("Expected meal description from merchant, got %q", meal.Description)
	}
	if meal.MealTime != "lunch" {
		t.Errorf("Expected lunch, got %q", meal.MealTime)
	}
	if !meal.ExpenseID.Valid {
		t.Error("Expected meal to link back to its expense")
	}
}

func TestRunSyncSingleFoodUsesOneShotEstimate(t *testing.T) {
	reader := &fakeReader{results: map[string]*mailbox.FetchResult{
		"a@example.com": {
			Transactions: []*extract.ParsedTransaction{foodTx("Pho Thin", lunchTime, "1")},
			SeenUIDs:     []string{"1"},
		},
	}}
	f := newFixture([]string{"a@example.com"}, reader)

	if _, err := f.orch.RunSync(context.Background()); err != nil {
		t.Fatalf("RunSync returned error: %v", err)
	}
	if len(f.estimator.singleCalls) != 1 || len(f.estimator.batchCalls) != 0 {
		t.Errorf("Expected exactly one single-shot call, got single=%v batch=%v",
			f.estimator.singleCalls, f.estimator.batchCalls)
	}
}

func TestRunSyncMultipleFoodUsesOneBatch(t *testing.T) {
	reader := &fakeReader{results: map[string]*mailbox.FetchResult{
		"a@example.com": {
			Transactions: []*extract.ParsedTransaction{
				foodTx("Pho Thin", lunchTime, "1"),
				foodTx("Banh Mi 25", dinnerTime, "2"),
				rideTx("3"),
			},
			SeenUIDs: []string{"1", "2", "3"},
		},
	}}
	f := newFixture([]string{"a@example.com"}, reader)

	result, err := f.orch.RunSync(context.Background())
	if err != nil {
		t.Fatalf("RunSync returned error: %v", err)
	}
	if result.MealsCreated != 2 {
		t.Errorf("Expected 2 meals, got %d", result.MealsCreated)
	}
	if len(f.estimator.singleCalls) != 0 {
		t.Errorf("Expected no single-shot calls, got %v", f.estimator.singleCalls)
	}
	if len(f.estimator.batchCalls) != 1 {
		t.Fatalf("Expected one batch call, got %d", len(f.estimator.batchCalls))
	}
	batch := f.estimator.batchCalls[0]
	if len(batch) != 2 || batch[0] != "Pho Thin" || batch[1] != "Banh Mi 25" {
		t.Errorf("Expected batch in input order, got %v", batch)
	}
	if f.meals.calls != 1 {
		t.Errorf("Expected one meal insert call, got %d", f.meals.calls)
	}
}

func TestRunSyncEstimationFailureKeepsExpenses(t *testing.T) {
	reader := &fakeReader{results: map[string]*mailbox.FetchResult{
		"a@example.com": {
			Transactions: []*extract.ParsedTransaction{
				foodTx("Pho Thin", lunchTime, "1"),
				foodTx("Banh Mi 25", dinnerTime, "2"),
			},
			SeenUIDs: []string{"1", "2"},
		},
	}}
	f := newFixture([]string{"a@example.com"}, reader)
	f.estimator.err = fmt.Errorf("model quota exceeded")

	result, err := f.orch.RunSync(context.Background())
	if err != nil {
		t.Fatalf("Expected no error on estimation failure, got %v", err)
	}
	if result.NewExpenses != 2 {
		t.Errorf("Expected 2 expenses, got %d", result.NewExpenses)
	}
	if result.MealsCreated != 0 {
		t.Errorf("Expected 0 meals, got %d", result.MealsCreated)
	}
	if len(f.watermarks.recorded) != 2 {
		t.Errorf("Expected watermarks recorded despite meal failure, got %d", len(f.watermarks.recorded))
	}
}

func TestRunSyncMealInsertFailureKeepsExpenses(t *testing.T) {
	reader := &fakeReader{results: map[string]*mailbox.FetchResult{
		"a@example.com": {
			Transactions: []*extract.ParsedTransaction{foodTx("Pho Thin", lunchTime, "1")},
			SeenUIDs:     []string{"1"},
		},
	}}
	f := newFixture([]string{"a@example.com"}, reader)
	f.meals.err = fmt.Errorf("table not found")

	result, err := f.orch.RunSync(context.Background())
	if err != nil {
		t.Fatalf("Expected no error on meal insert failure, got %v", err)
	}
	if result.NewExpenses != 1 || result.MealsCreated != 0 {
		t.Errorf("Expected 1 expense and 0 meals, got %+v", result)
	}
}

func TestRunSyncOneMailboxFailing(t *testing.T) {
	reader := &fakeReader{
		results: map[string]*mailbox.FetchResult{
			"a@example.com": {
				Transactions: []*extract.ParsedTransaction{rideTx("1")},
				SeenUIDs:     []string{"1"},
			},
		},
		errs: map[string]error{"b@example.com": fmt.Errorf("dial tcp: refused")},
	}
	f := newFixture([]string{"a@example.com", "b@example.com"}, reader)

	result, err := f.orch.RunSync(context.Background())
	if err != nil {
		t.Fatalf("Expected partial success, got error: %v", err)
	}
	if result.NewExpenses != 1 {
		t.Errorf("Expected 1 expense from the healthy mailbox, got %d", result.NewExpenses)
	}
	for _, row := range f.watermarks.recorded {
		if row.EmailAccount == "b@example.com" {
			t.Errorf("Expected no watermarks for the failed mailbox, got %+v", row)
		}
	}
}

func TestRunSyncAllMailboxesFailing(t *testing.T) {
	reader := &fakeReader{errs: map[string]error{
		"a@example.com": fmt.Errorf("dial tcp: refused"),
		"b@example.com": fmt.Errorf("login failed"),
	}}
	f := newFixture([]string{"a@example.com", "b@example.com"}, reader)

	if _, err := f.orch.RunSync(context.Background()); err == nil {
		t.Fatal("Expected error when every mailbox fails, got nil")
	}
	if len(f.expenses.inserted) != 0 {
		t.Errorf("Expected no expenses, got %d", len(f.expenses.inserted))
	}
}

func TestRunSyncExpenseInsertFailureSkipsWatermarks(t *testing.T) {
	reader := &fakeReader{results: map[string]*mailbox.FetchResult{
		"a@example.com": {
			Transactions: []*extract.ParsedTransaction{rideTx("1")},
			SeenUIDs:     []string{"1"},
		},
	}}
	f := newFixture([]string{"a@example.com"}, reader)
	f.expenses.err = fmt.Errorf("streaming insert failed")

	if _, err := f.orch.RunSync(context.Background()); err == nil {
		t.Fatal("Expected error when expense insert fails, got nil")
	}
	if len(f.watermarks.recorded) != 0 {
		t.Errorf("Expected no watermarks so the batch is retried, got %d", len(f.watermarks.recorded))
	}
}

func TestRunSyncNoMailboxes(t *testing.T) {
	f := newFixture(nil, &fakeReader{})

	result, err := f.orch.RunSync(context.Background())
	if err != nil {
		t.Fatalf("RunSync returned error: %v", err)
	}
	if result.NewExpenses != 0 || result.MealsCreated != 0 {
		t.Errorf("Expected empty result, got %+v", result)
	}
}

func TestRunSyncNilEstimatorSkipsMeals(t *testing.T) {
	reader := &fakeReader{results: map[string]*mailbox.FetchResult{
		"a@example.com": {
			Transactions: []*extract.ParsedTransaction{foodTx("Pho Thin", lunchTime, "1")},
			SeenUIDs:     []string{"1"},
		},
	}}
	f := newFixture([]string{"a@example.com"}, reader)
	f.orch.estimator = nil

	result, err := f.orch.RunSync(context.Background())
	if err != nil {
		t.Fatalf("RunSync returned error: %v", err)
	}
	if result.NewExpenses != 1 || result.MealsCreated != 0 {
		t.Errorf("Expected 1 expense and 0 meals without an estimator, got %+v", result)
	}
}
