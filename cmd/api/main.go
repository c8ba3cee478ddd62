package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/tqhuy/finfit/internal/api/handlers"
	"github.com/tqhuy/finfit/internal/api/middleware"
	"github.com/tqhuy/finfit/internal/archive"
	"github.com/tqhuy/finfit/internal/config"
	"github.com/tqhuy/finfit/internal/extract"
	"github.com/tqhuy/finfit/internal/ingest"
	"github.com/tqhuy/finfit/internal/jobs"
	"github.com/tqhuy/finfit/internal/jobs/inmemory"
	"github.com/tqhuy/finfit/internal/logger"
	"github.com/tqhuy/finfit/internal/mailbox"
	"github.com/tqhuy/finfit/internal/nutrition"
	storebq "github.com/tqhuy/finfit/internal/store/bigquery"
)

func main() {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if cfg.ProjectID == "" {
		log.Fatal().Msg("FINFIT_BQ_PROJECT is required")
	}
	if len(cfg.Mailboxes) == 0 {
		log.Warn().Msg("No mailboxes configured - sync runs will be no-ops")
	}
	if !cfg.HasLLM() {
		log.Warn().Msg("No Gemini credential - extraction degrades to pattern parsers, meals are skipped")
	}

	ctx := context.Background()

	repo, err := storebq.NewRepository(ctx, cfg.ProjectID, cfg.DatasetID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery repository")
	}
	defer repo.Close()

	// Build the ingestion pipeline.
	var llm extract.LLMStrategy
	var estimator nutrition.Estimator
	if cfg.HasLLM() {
		llm = extract.NewGeminiExtractor("")
		estimator = nutrition.NewGeminiEstimator("")
	}
	extractor := extract.New(llm, log)

	reader := mailbox.NewReader(extractor, nil, log)
	if cfg.ArchiveBucket != "" {
		reader.WithArchiver(archive.NewGCSArchiver(cfg.ArchiveBucket))
	}

	orchestrator := ingest.NewOrchestrator(cfg, reader, repo, repo, repo, estimator, log)

	// Initialize job infrastructure.
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	jobHandler := func(ctx context.Context, job jobs.Job) error {
		syncJob, ok := job.(*jobs.SyncMailboxesJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		log.Info().Str("job_id", syncJob.JobID).Msg("Processing sync job")

		result, err := orchestrator.RunSync(logger.WithContext(ctx, log))
		if err != nil {
			log.Error().Err(err).Str("job_id", syncJob.JobID).Msg("Sync job failed")
			return err
		}

		syncJob.NewExpenses = result.NewExpenses
		syncJob.MealsCreated = result.MealsCreated

		log.Info().
			Str("job_id", syncJob.JobID).
			Int("new_expenses", result.NewExpenses).
			Int("meals_created", result.MealsCreated).
			Msg("Sync job completed")
		return nil
	}

	go func() {
		log.Info().Msg("Starting job worker")
		if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
			log.Error().Err(err).Msg("Job worker stopped with error")
		}
	}()

	// Initialize handlers.
	syncHandler := handlers.NewSyncHandler(orchestrator, jobQueue, log)
	expensesHandler := handlers.NewExpensesHandler(repo, cfg.UserID, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, log)

	// Create router.
	mux := http.NewServeMux()

	mux.HandleFunc("/api/sync", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			syncHandler.RunSync(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/sync/enqueue", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			syncHandler.EnqueueSync(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/transactions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			expensesHandler.ListExpenses(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/insights", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			expensesHandler.GetInsights(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobsHandler.ListJobs(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			jobsHandler.GetJob(w, r, jobID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Apply middleware.
	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(
					middleware.Auth(mux),
				),
			),
		),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	log.Info().Msg("Server exited")
}
