package async

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"docflow/constants"
	"docflow/internal/blob"
	"docflow/internal/extract"
	"docflow/internal/llm"
	"docflow/internal/pipeline"
	"docflow/internal/repository"
)

type stubExtract struct{}

func (stubExtract) Extract(context.Context, string, string) (extract.Result, error) {
	return extract.Result{Text: "text"}, nil
}

// gateExtract blocks every extraction until the gate is closed, keeping a
// worker occupied for as long as a test needs.
type gateExtract struct {
	gate chan struct{}
}

func (g *gateExtract) Extract(ctx context.Context, _ string, _ string) (extract.Result, error) {
	select {
	case <-g.gate:
		return extract.Result{Text: "text"}, nil
	case <-ctx.Done():
		return extract.Result{}, ctx.Err()
	}
}

type stubLLM struct{}

func (stubLLM) Process(context.Context, llm.Content, json.RawMessage) (json.RawMessage, error) {
	return json.RawMessage(`{"ok":true}`), nil
}

func TestQueueProcessesAndDrains(t *testing.T) {
	logger := slog.Default()
	ctx := context.Background()

	store, err := repository.OpenSQLite(ctx, filepath.Join(t.TempDir(), "docflow.db"), logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(store.Close)
	blobs, err := blob.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("open blob store: %v", err)
	}

	jobs := repository.NewJobRepository(store, logger)
	files := repository.NewJobFileRepository(store, logger)
	upload := pipeline.NewUploadStage(files, blobs, logger)
	proc := pipeline.NewProcessor(logger,
		pipeline.NewExtractStage(jobs, files, stubExtract{}, logger),
		pipeline.NewProcessStage(jobs, files, stubLLM{}, logger),
		jobs, files)

	job, err := jobs.Create(ctx, repository.CreateJobParams{ExtractionMode: "text"})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	file, err := upload.Run(ctx, job.ID, "a.pdf", []byte("data"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	q := NewProcessorQueue(proc, logger, WithWorkers(2), WithQueueSize(8))
	if err := q.Enqueue(ctx, Job{FileID: file.ID, SubmittedAt: time.Now()}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	q.Shutdown(shutdownCtx)

	got, err := files.GetByID(ctx, file.ID)
	if err != nil {
		t.Fatalf("get file: %v", err)
	}
	if got.ProcessingStatus != constants.StageCompleted {
		t.Errorf("processing_status = %q, want completed after drain", got.ProcessingStatus)
	}

	// Enqueue after shutdown is a logged no-op.
	if err := q.Enqueue(ctx, Job{FileID: file.ID}); err != nil {
		t.Errorf("enqueue after shutdown: %v", err)
	}
}

func TestEnqueueHonorsContextWhenFull(t *testing.T) {
	logger := slog.Default()
	ctx := context.Background()

	store, err := repository.OpenSQLite(ctx, filepath.Join(t.TempDir(), "docflow.db"), logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(store.Close)
	blobs, err := blob.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("open blob store: %v", err)
	}

	jobs := repository.NewJobRepository(store, logger)
	files := repository.NewJobFileRepository(store, logger)
	upload := pipeline.NewUploadStage(files, blobs, logger)
	extractor := &gateExtract{gate: make(chan struct{})}
	proc := pipeline.NewProcessor(logger,
		pipeline.NewExtractStage(jobs, files, extractor, logger),
		pipeline.NewProcessStage(jobs, files, stubLLM{}, logger),
		jobs, files)

	job, err := jobs.Create(ctx, repository.CreateJobParams{ExtractionMode: "text"})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	var ids []Job
	for _, name := range []string{"a.pdf", "b.pdf", "c.pdf"} {
		f, err := upload.Run(ctx, job.ID, name, []byte("data"))
		if err != nil {
			t.Fatalf("upload %s: %v", name, err)
		}
		ids = append(ids, Job{FileID: f.ID, SubmittedAt: time.Now()})
	}

	// One worker, buffer of one. The first job occupies the worker at the
	// gate, the second fills the buffer, so the third must wait on ctx.
	q := NewProcessorQueue(proc, logger, WithWorkers(1), WithQueueSize(1))
	if err := q.Enqueue(ctx, ids[0]); err != nil {
		t.Fatalf("enqueue first: %v", err)
	}
	if err := q.Enqueue(ctx, ids[1]); err != nil {
		t.Fatalf("enqueue second: %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := q.Enqueue(cancelled, ids[2]); !errors.Is(err, context.Canceled) {
		t.Fatalf("enqueue on full queue with cancelled ctx: err = %v, want context.Canceled", err)
	}

	close(extractor.gate)
	shutdownCtx, cancelShutdown := context.WithTimeout(ctx, 10*time.Second)
	defer cancelShutdown()
	q.Shutdown(shutdownCtx)

	got, err := files.GetByID(ctx, ids[0].FileID)
	if err != nil {
		t.Fatalf("get file: %v", err)
	}
	if got.ProcessingStatus != constants.StageCompleted {
		t.Errorf("processing_status = %q, want completed after drain", got.ProcessingStatus)
	}
}
