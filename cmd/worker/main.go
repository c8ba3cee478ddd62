// Command worker runs mailbox sync without the HTTP surface. With no
// flags it performs a single run and exits, which is the shape cron and
// Cloud Scheduler expect; -interval keeps it running on a loop.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tqhuy/finfit/internal/archive"
	"github.com/tqhuy/finfit/internal/config"
	"github.com/tqhuy/finfit/internal/extract"
	"github.com/tqhuy/finfit/internal/ingest"
	"github.com/tqhuy/finfit/internal/logger"
	"github.com/tqhuy/finfit/internal/mailbox"
	"github.com/tqhuy/finfit/internal/nutrition"
	storebq "github.com/tqhuy/finfit/internal/store/bigquery"
)

func main() {
	log := logger.New()

	interval := flag.Duration("interval", 0, "Run continuously with this period (e.g. 30m); 0 runs once")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if cfg.ProjectID == "" {
		log.Fatal().Msg("FINFIT_BQ_PROJECT is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	repo, err := storebq.NewRepository(ctx, cfg.ProjectID, cfg.DatasetID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery repository")
	}
	defer repo.Close()

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

	runOnce := func() error {
		runCtx, runCancel := context.WithTimeout(ctx, 15*time.Minute)
		defer runCancel()

		result, err := orchestrator.RunSync(runCtx)
		if err != nil {
			return err
		}
		log.Info().
			Int("new_expenses", result.NewExpenses).
			Int("meals_created", result.MealsCreated).
			Msg("Sync run finished")
		return nil
	}

	if *interval <= 0 {
		if err := runOnce(); err != nil {
			log.Fatal().Err(err).Msg("Sync run failed")
		}
		return
	}

	log.Info().Dur("interval", *interval).Msg("Starting periodic sync worker")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	if err := runOnce(); err != nil {
		log.Error().Err(err).Msg("Sync run failed")
	}
	for {
		select {
		case <-ticker.C:
			if err := runOnce(); err != nil {
				log.Error().Err(err).Msg("Sync run failed")
			}
		case <-quit:
			log.Info().Msg("Worker exiting")
			return
		}
	}
}
