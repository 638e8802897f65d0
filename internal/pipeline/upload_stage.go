package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"docflow/constants"
	"docflow/internal/blob"
	"docflow/internal/entity"
	"docflow/internal/repository"
)

// UploadStage registers a file against a job, pushes its bytes to the blob
// store, and records the upload outcome. Retry policy lives with the caller;
// this stage only maintains the stored counter and timestamps.
type UploadStage struct {
	FilesRepo repository.JobFileRepository
	Blobs     blob.Store
	Logger    *slog.Logger
}

func NewUploadStage(files repository.JobFileRepository, blobs blob.Store, logger *slog.Logger) *UploadStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadStage{FilesRepo: files, Blobs: blobs, Logger: logger}
}

// Run registers and uploads one file. The returned JobFile reflects the
// stored state after the outcome was recorded.
func (s *UploadStage) Run(ctx context.Context, jobID uuid.UUID, filename string, data []byte) (*entity.JobFile, error) {
	hash := blob.HashBytes(data)
	file, err := s.FilesRepo.Register(ctx, jobID, filename, int64(len(data)), hash)
	if err != nil {
		return nil, err
	}

	if err := s.upload(ctx, file.ID, jobID, data); err != nil {
		return s.reload(ctx, file.ID, err)
	}
	return s.reload(ctx, file.ID, nil)
}

// Retry re-attempts the upload of an already registered file.
func (s *UploadStage) Retry(ctx context.Context, fileID uuid.UUID, data []byte) (*entity.JobFile, error) {
	file, err := s.FilesRepo.GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if err := s.upload(ctx, file.ID, file.JobID, data); err != nil {
		return s.reload(ctx, file.ID, err)
	}
	return s.reload(ctx, file.ID, nil)
}

func (s *UploadStage) upload(ctx context.Context, fileID, jobID uuid.UUID, data []byte) error {
	if err := s.FilesRepo.MarkUploading(ctx, fileID); err != nil {
		return err
	}

	key := fmt.Sprintf("%s/%s", jobID, fileID)
	if err := s.Blobs.Put(ctx, key, data); err != nil {
		s.Logger.Error("blob upload failed", "file_id", fileID, "error", err)
		_ = s.FilesRepo.RecordUploadOutcome(ctx, fileID, constants.UploadFailed, err.Error())
		return fmt.Errorf("upload blob: %w", err)
	}
	if err := s.FilesRepo.SetBlobKey(ctx, fileID, key); err != nil {
		return err
	}
	return s.FilesRepo.RecordUploadOutcome(ctx, fileID, constants.UploadCompleted, "")
}

func (s *UploadStage) reload(ctx context.Context, fileID uuid.UUID, cause error) (*entity.JobFile, error) {
	file, err := s.FilesRepo.GetByID(ctx, fileID)
	if err != nil {
		if cause != nil {
			return nil, cause
		}
		return nil, err
	}
	return file, cause
}
