package pipeline

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"docflow/constants"
	"docflow/internal/common"
	"docflow/internal/extract"
	"docflow/internal/repository"
)

// ExtractStage runs the extraction engine for a file and records the outcome.
// It reloads everything it needs from the stores, so a scheduler may re-invoke
// it without any in-memory state from earlier steps.
type ExtractStage struct {
	JobsRepo  repository.JobRepository
	FilesRepo repository.JobFileRepository
	Engine    extract.Engine
	Logger    *slog.Logger
}

func NewExtractStage(jobs repository.JobRepository, files repository.JobFileRepository, engine extract.Engine, logger *slog.Logger) *ExtractStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractStage{JobsRepo: jobs, FilesRepo: files, Engine: engine, Logger: logger}
}

func (s *ExtractStage) Run(ctx context.Context, fileID uuid.UUID) error {
	file, err := s.FilesRepo.GetByID(ctx, fileID)
	if err != nil {
		return err
	}
	if file.UploadStatus != constants.UploadCompleted {
		return common.InvalidStatef("file %s not uploaded (upload_status=%s)", fileID, file.UploadStatus)
	}

	job, err := s.JobsRepo.GetByID(ctx, file.JobID)
	if err != nil {
		return err
	}

	if err := s.FilesRepo.MarkExtracting(ctx, fileID); err != nil {
		return err
	}

	res, err := s.Engine.Extract(ctx, file.BlobKey, job.ExtractionMode)
	if err != nil {
		s.Logger.Error("extraction failed", "file_id", fileID, "mode", job.ExtractionMode, "error", err)
		if recErr := s.FilesRepo.RecordExtraction(ctx, fileID, constants.StageFailed, nil, err.Error()); recErr != nil {
			return recErr
		}
		return err
	}

	payload := &repository.ExtractionPayload{
		Text:     res.Text,
		Tables:   res.Tables,
		Markdown: res.Markdown,
		Pages:    res.Pages,
		Metadata: res.Metadata,
	}
	if err := s.FilesRepo.RecordExtraction(ctx, fileID, constants.StageCompleted, payload, ""); err != nil {
		return err
	}

	s.Logger.Info("extraction completed", "file_id", fileID, "mode", job.ExtractionMode, "text_bytes", len(res.Text))
	return nil
}
