package pipeline

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"docflow/constants"
	"docflow/internal/common"
	"docflow/internal/llm"
	"docflow/internal/repository"
)

// ProcessStage runs the AI processing engine for an extracted file, validates
// the result against the job's processing schema, and records the outcome.
// The processing writer handles first-write-wins capture and the conditional
// enrichment chain; this stage only produces the outcome.
type ProcessStage struct {
	JobsRepo  repository.JobRepository
	FilesRepo repository.JobFileRepository
	Engine    llm.Engine
	Logger    *slog.Logger
}

func NewProcessStage(jobs repository.JobRepository, files repository.JobFileRepository, engine llm.Engine, logger *slog.Logger) *ProcessStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessStage{JobsRepo: jobs, FilesRepo: files, Engine: engine, Logger: logger}
}

func (s *ProcessStage) Run(ctx context.Context, fileID uuid.UUID) error {
	file, err := s.FilesRepo.GetByID(ctx, fileID)
	if err != nil {
		return err
	}
	if file.ExtractionStatus != constants.StageCompleted {
		return common.InvalidStatef("file %s not extracted (extraction_status=%s)", fileID, file.ExtractionStatus)
	}

	job, err := s.JobsRepo.GetByID(ctx, file.JobID)
	if err != nil {
		return err
	}

	if err := s.FilesRepo.MarkProcessing(ctx, fileID); err != nil {
		return err
	}

	content := llm.Content{Tables: file.ExtractedTables}
	if file.ExtractedText != nil {
		content.Text = *file.ExtractedText
	}
	if file.Markdown != nil {
		content.Markdown = *file.Markdown
	}

	result, err := s.Engine.Process(ctx, content, job.ProcessingSchema)
	if err != nil {
		s.Logger.Error("processing failed", "file_id", fileID, "error", err)
		if recErr := s.FilesRepo.RecordProcessing(ctx, fileID, repository.ProcessingOutcome{
			Status: constants.StageFailed,
			Error:  err.Error(),
		}); recErr != nil {
			return recErr
		}
		return err
	}

	if len(job.ProcessingSchema) > 0 {
		if verr := llm.ValidateAgainstSchema(job.ProcessingSchema, result); verr != nil {
			s.Logger.Warn("result failed schema validation", "file_id", fileID, "error", verr)
			if recErr := s.FilesRepo.RecordProcessing(ctx, fileID, repository.ProcessingOutcome{
				Status: constants.StageFailed,
				Error:  verr.Error(),
			}); recErr != nil {
				return recErr
			}
			return verr
		}
	}

	if err := s.FilesRepo.RecordProcessing(ctx, fileID, repository.ProcessingOutcome{
		Status: constants.StageCompleted,
		Result: result,
	}); err != nil {
		return err
	}

	s.Logger.Info("processing completed", "file_id", fileID, "job_id", job.ID)
	return nil
}
