package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"docflow/internal/pipeline"
)

// Job is the smallest useful unit of work handed to the pool.
type Job struct {
	FileID      uuid.UUID
	SubmittedAt time.Time
}

// Queue accepts per-file work and drains it on shutdown.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// ProcessorQueue is a bounded in-process worker pool driving the per-file
// pipeline. Workers carry no shared state; coordination happens entirely in
// the durable stores, so several daemon instances can run side by side.
type ProcessorQueue struct {
	proc    *pipeline.Processor
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch chan Job
	wg sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewProcessorQueue(proc *pipeline.Processor, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		proc:    proc,
		logger:  logger,
		workers: 4,
		timeout: 3 * time.Minute,
		ch:      make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i + 1)
	}
	return q
}

func (q *ProcessorQueue) worker(id int) {
	defer q.wg.Done()
	log := q.logger.With("worker_id", id)
	log.Info("worker started")

	for job := range q.ch {
		ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
		err := q.proc.ProcessFile(ctx, job.FileID)
		cancel()

		if err != nil {
			log.Error("file processing failed", "file_id", job.FileID, "waited", time.Since(job.SubmittedAt), "error", err)
			continue
		}
		log.Info("file processed", "file_id", job.FileID, "waited", time.Since(job.SubmittedAt))
	}
	log.Info("worker stopped")
}

// Enqueue hands a job to the pool. When the buffer is full it waits for a
// slot, checking ctx and the shutdown flag between attempts; it never blocks
// while holding the lock, so a full queue cannot deadlock Shutdown. Enqueue
// after shutdown is a logged no-op.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			q.logger.Warn("dropping job, queue is shut down", "file_id", job.FileID)
			return nil
		}
		select {
		case q.ch <- job:
			q.mu.Unlock()
			return nil
		default:
			q.mu.Unlock()
		}

		q.logger.Warn("queue full, waiting for a slot", "file_id", job.FileID)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// Shutdown stops intake and waits for the workers to drain the buffer, up to
// the context deadline.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted before the queue drained")
	case <-done:
		q.logger.Info("queue drained")
	}
}
