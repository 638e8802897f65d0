package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"docflow/constants"
	"docflow/internal/common"
	"docflow/internal/repository"
)

func TestExportJobXLSX(t *testing.T) {
	logger := slog.Default()
	ctx := context.Background()

	store, err := repository.OpenSQLite(ctx, filepath.Join(t.TempDir(), "docflow.db"), logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(store.Close)

	jobs := repository.NewJobRepository(store, logger)
	files := repository.NewJobFileRepository(store, logger)
	svc := NewService(jobs, files, logger)

	job, err := jobs.Create(ctx, repository.CreateJobParams{ExtractionMode: "full"})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	file, err := files.Register(ctx, job.ID, "invoice.pdf", 10, "hash")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := files.RecordProcessing(ctx, file.ID, repository.ProcessingOutcome{
		Status: constants.StageCompleted,
		Result: json.RawMessage(`{"total":"10.00"}`),
	}); err != nil {
		t.Fatalf("record processing: %v", err)
	}

	data, err := svc.ExportJobXLSX(ctx, job.ID)
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	wb, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer wb.Close()

	rows, err := wb.GetRows("Files")
	if err != nil {
		t.Fatalf("read sheet: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want header + 1 file", len(rows))
	}
	if rows[0][0] != "Filename" {
		t.Errorf("header = %q, want Filename", rows[0][0])
	}
	if rows[1][0] != "invoice.pdf" {
		t.Errorf("filename cell = %q", rows[1][0])
	}
	if rows[1][4] != "completed" {
		t.Errorf("processing status cell = %q, want completed", rows[1][4])
	}
}

func TestExportUnknownJob(t *testing.T) {
	logger := slog.Default()
	ctx := context.Background()

	store, err := repository.OpenSQLite(ctx, filepath.Join(t.TempDir(), "docflow.db"), logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(store.Close)

	svc := NewService(repository.NewJobRepository(store, logger), repository.NewJobFileRepository(store, logger), logger)
	if _, err := svc.ExportJobXLSX(ctx, uuid.New()); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("err = %v, want NotFound", err)
	}
}
