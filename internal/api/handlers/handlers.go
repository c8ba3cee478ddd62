package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/tqhuy/finfit/internal/analytics"
	"github.com/tqhuy/finfit/internal/api/middleware"
	"github.com/tqhuy/finfit/internal/ingest"
	"github.com/tqhuy/finfit/internal/jobs"
	"github.com/tqhuy/finfit/internal/store"
)

// insightsWindowDays is how far back spending insights look.
const insightsWindowDays = 30

// SyncRunner executes one mailbox ingestion run.
type SyncRunner interface {
	RunSync(ctx context.Context) (*ingest.SyncResult, error)
}

// SyncHandler handles sync-related endpoints.
type SyncHandler struct {
	runner    SyncRunner
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(runner SyncRunner, publisher jobs.Publisher, log zerolog.Logger) *SyncHandler {
	return &SyncHandler{
		runner:    runner,
		publisher: publisher,
		log:       log,
	}
}

// RunSync handles POST /api/sync. The run happens inline; a response
// only comes back once every mailbox was attempted.
func (h *SyncHandler) RunSync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	result, err := h.runner.RunSync(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Sync run failed")
		if errors.Is(err, ingest.ErrAllMailboxesFailed) {
			middleware.WriteError(w, http.StatusBadGateway, "All mailboxes unreachable")
			return
		}
		middleware.WriteError(w, http.StatusInternalServerError, "Sync failed")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, result)
}

// EnqueueSync handles POST /api/sync/enqueue.
func (h *SyncHandler) EnqueueSync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	job := &jobs.SyncMailboxesJob{Requester: "api"}
	if err := h.publisher.PublishSyncMailboxes(ctx, job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue sync job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue sync job")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Msg("Sync job enqueued")

	// The worker may already be mutating the job; report the status it
	// was enqueued with.
	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"status": string(jobs.JobStatusPending),
	})
}

// ExpensesHandler handles expense-related endpoints.
type ExpensesHandler struct {
	repo   store.ExpenseRepository
	userID string
	log    zerolog.Logger
}

// NewExpensesHandler creates a new expenses handler.
func NewExpensesHandler(repo store.ExpenseRepository, userID string, log zerolog.Logger) *ExpensesHandler {
	return &ExpensesHandler{
		repo:   repo,
		userID: userID,
		log:    log,
	}
}

// ListExpenses handles GET /api/transactions
func (h *ExpensesHandler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := r.URL.Query()
	startDateStr := query.Get("start_date")
	endDateStr := query.Get("end_date")

	var startDate, endDate time.Time
	var err error

	if startDateStr != "" {
		startDate, err = time.Parse("2006-01-02", startDateStr)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid start_date format")
			return
		}
	} else {
		startDate = time.Now().AddDate(-1, 0, 0)
	}

	if endDateStr != "" {
		endDate, err = time.Parse("2006-01-02", endDateStr)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid end_date format")
			return
		}
	} else {
		endDate = time.Now()
	}

	expenses, err := h.repo.QueryExpensesByDateRange(ctx, h.userID, startDate, endDate)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to query expenses")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to query expenses")
		return
	}

	// Return array directly for frontend compatibility
	if expenses == nil {
		expenses = []*store.ExpenseRow{}
	}
	middleware.WriteJSON(w, http.StatusOK, expenses)
}

// GetInsights handles GET /api/insights
func (h *ExpensesHandler) GetInsights(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	end := time.Now()
	start := end.AddDate(0, 0, -insightsWindowDays)

	expenses, err := h.repo.QueryExpensesByDateRange(ctx, h.userID, start, end)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to query expenses for insights")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to compute insights")
		return
	}

	patterns := analytics.DetectWeekendWeekdayPatterns(expenses)
	if patterns == nil {
		patterns = []analytics.Insight{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"patterns":    patterns,
		"topCategory": analytics.FindTopSpendingCategory(expenses),
	})
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	ctx := r.Context()

	job, err := h.store.GetJob(ctx, jobID)
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := r.URL.Query()
	filter := jobs.JobFilter{
		Requester: query.Get("requester"),
		Status:    jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
