package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"docflow/internal/repository"
)

// Service is a tiny façade over the repositories that produces XLSX bytes for
// a job's processed results.
type Service struct {
	jobsRepo  repository.JobRepository
	filesRepo repository.JobFileRepository
	logger    *slog.Logger
}

func NewService(jobs repository.JobRepository, files repository.JobFileRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{jobsRepo: jobs, filesRepo: files, logger: logger}
}

// ExportJobXLSX returns an XLSX workbook (as bytes) listing every file of the
// job with its statuses and current result.
func (s *Service) ExportJobXLSX(ctx context.Context, jobID uuid.UUID) ([]byte, error) {
	start := time.Now()

	job, err := s.jobsRepo.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	files, err := s.filesRepo.ListByJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	const sheet = "Files"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)

	headers := []string{
		"Filename",
		"Upload Status",
		"Retries",
		"Extraction Status",
		"Processing Status",
		"Needs Review",
		"Processed At",
		"Result",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, file := range files {
		processedAt := ""
		if file.ProcessedAt != nil {
			processedAt = file.ProcessedAt.UTC().Format(time.RFC3339)
		}
		values := []any{
			file.Filename,
			string(file.UploadStatus),
			file.RetryCount,
			string(file.ExtractionStatus),
			string(file.ProcessingStatus),
			file.NeedsReview,
			processedAt,
			string(file.Result),
		}
		for i, v := range values {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		row++
	}

	if err := f.DeleteSheet("Sheet1"); err != nil {
		s.logger.Debug("could not drop default sheet", "error", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}

	s.logger.Info("job exported",
		"job_id", jobID, "status", job.Status,
		"files", len(files), "duration", time.Since(start),
	)
	return buf.Bytes(), nil
}
