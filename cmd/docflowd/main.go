package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"docflow/internal/async"
	"docflow/internal/common"
	"docflow/internal/enrich"
	"docflow/internal/extract"
	"docflow/internal/llm"
	"docflow/internal/pipeline"
	"docflow/internal/repository"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if cfg.Extract.BaseURL == "" || cfg.Process.BaseURL == "" {
		logger.Error("EXTRACT_URL and PROCESS_URL are required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := store.HealthCheck(ctx, cfg.Database.DialTimeout); err != nil {
		logger.Error("store health check failed", "error", err)
		os.Exit(1)
	}
	logger.Info("store health OK")

	jobsRepo := repository.NewJobRepository(store, logger)

	fileOpts := []repository.FileOption{repository.WithMaxTextSize(cfg.Extract.MaxTextSize)}
	if cfg.Enrich.BaseURL != "" {
		chain := enrich.NewChain(
			enrich.NewHTTPLookup(cfg.Enrich.BaseURL, cfg.Enrich.Timeout),
			logger,
			enrich.WithReferenceField(cfg.Enrich.ReferenceField),
		)
		fileOpts = append(fileOpts, repository.WithEnricher(chain))
	}
	filesRepo := repository.NewJobFileRepository(store, logger, fileOpts...)

	extractStage := pipeline.NewExtractStage(jobsRepo, filesRepo,
		extract.NewHTTPEngine(cfg.Extract.BaseURL, cfg.Extract.Timeout), logger)
	processStage := pipeline.NewProcessStage(jobsRepo, filesRepo,
		llm.NewHTTPEngine(cfg.Process.BaseURL, cfg.Process.APIKey, cfg.Process.Timeout), logger)
	processor := pipeline.NewProcessor(logger, extractStage, processStage, jobsRepo, filesRepo)

	queue := async.NewProcessorQueue(processor, logger,
		async.WithWorkers(cfg.Worker.Workers),
		async.WithQueueSize(cfg.Worker.QueueSize),
		async.WithProcessTimeout(cfg.Worker.ProcessTimeout),
	)

	logger.Info("docflowd started", "workers", cfg.Worker.Workers)

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			// Claiming flips pending files to extracting in the same statement,
			// so a slow worker never gets the same file dispatched twice.
			ids, err := filesRepo.ClaimPending(ctx, cfg.Worker.QueueSize)
			if err != nil {
				logger.Error("failed to claim pending files", "error", err)
				continue
			}
			for _, id := range ids {
				_ = queue.Enqueue(ctx, async.Job{FileID: id, SubmittedAt: time.Now()})
			}
		}
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	queue.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*repository.Store, error) {
	if cfg.Database.DSN != "" {
		return repository.OpenPostgres(ctx, cfg.Database, logger)
	}
	return repository.OpenSQLite(ctx, cfg.Database.Path, logger)
}
