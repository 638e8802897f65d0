// Package pipeline coordinates the per-file stages: upload, extraction, AI
// processing, and the job rollup. Each stage is independently retryable and
// reloads its state from the stores.
package pipeline

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"docflow/internal/repository"
)

// Processor runs extraction then processing for a file and recomputes the
// owning job's rollup afterwards, whatever the outcome.
type Processor struct {
	Logger    *slog.Logger
	Extract   *ExtractStage
	Process   *ProcessStage
	JobsRepo  repository.JobRepository
	FilesRepo repository.JobFileRepository
}

func NewProcessor(logger *slog.Logger, extract *ExtractStage, process *ProcessStage, jobs repository.JobRepository, files repository.JobFileRepository) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{Logger: logger, Extract: extract, Process: process, JobsRepo: jobs, FilesRepo: files}
}

// ProcessFile advances a single uploaded file through extraction and
// processing. The rollup runs even when a stage fails so the job status
// reflects the failure.
func (p *Processor) ProcessFile(ctx context.Context, fileID uuid.UUID) error {
	file, err := p.FilesRepo.GetByID(ctx, fileID)
	if err != nil {
		return err
	}
	jobID := file.JobID

	defer func() {
		if _, _, err := p.JobsRepo.RecomputeSummary(ctx, jobID); err != nil {
			p.Logger.Error("rollup recompute failed", "job_id", jobID, "error", err)
		}
	}()

	if err := p.Extract.Run(ctx, fileID); err != nil {
		p.Logger.Error("processor.extract.failed", "file_id", fileID, "err", err)
		return err
	}
	p.Logger.Info("processor.extract.ok", "file_id", fileID)

	if err := p.Process.Run(ctx, fileID); err != nil {
		p.Logger.Error("processor.process.failed", "file_id", fileID, "err", err)
		return err
	}
	p.Logger.Info("processor.process.ok", "file_id", fileID)
	return nil
}
