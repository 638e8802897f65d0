package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"docflow/constants"
	"docflow/internal/common"
	"docflow/internal/entity"
	"docflow/internal/rollup"
)

// CreateJobParams wraps the fixed-at-creation configuration of a job.
type CreateJobParams struct {
	ExtractionMode    string
	ProcessingSchema  json.RawMessage
	EnrichmentEnabled bool
}

type JobRepository interface {
	Create(ctx context.Context, params CreateJobParams) (*entity.Job, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	// Cancel is the only direct status write permitted from outside the rollup.
	Cancel(ctx context.Context, id uuid.UUID) error
	// Delete tears down the job and cascades to its files.
	Delete(ctx context.Context, id uuid.UUID) error
	// RecomputeSummary rescans the job's files in one grouped query, derives
	// the aggregate status, and writes both back to the job row. Safe to call
	// any number of times.
	RecomputeSummary(ctx context.Context, id uuid.UUID) (*entity.Summary, constants.JobStatus, error)
}

type jobRepo struct {
	store  *Store
	logger *slog.Logger
}

func NewJobRepository(store *Store, logger *slog.Logger) JobRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &jobRepo{store: store, logger: logger}
}

const jobColumns = "id, status, extraction_mode, processing_schema, enrichment_enabled, summary, created_at, updated_at"

func (r *jobRepo) Create(ctx context.Context, params CreateJobParams) (*entity.Job, error) {
	id := uuid.New()
	now := time.Now().UTC()
	ts := formatTime(now)

	_, err := r.store.db.ExecContext(ctx, r.store.q(
		`INSERT INTO jobs (id, status, extraction_mode, processing_schema, enrichment_enabled, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`),
		id.String(),
		string(constants.JobStatusQueued),
		params.ExtractionMode,
		nullableBytes(params.ProcessingSchema),
		boolToInt(params.EnrichmentEnabled),
		ts,
		ts,
	)
	if err != nil {
		r.logger.Error("failed to create job", "extraction_mode", params.ExtractionMode, "error", err)
		return nil, common.StoreError("create job", err)
	}

	r.logger.Info("job created", "job_id", id, "extraction_mode", params.ExtractionMode, "enrichment_enabled", params.EnrichmentEnabled)
	return &entity.Job{
		ID:                id,
		Status:            constants.JobStatusQueued,
		ExtractionMode:    params.ExtractionMode,
		ProcessingSchema:  params.ProcessingSchema,
		EnrichmentEnabled: params.EnrichmentEnabled,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

func (r *jobRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	row := r.store.db.QueryRowContext(ctx,
		r.store.q(`SELECT `+jobColumns+` FROM jobs WHERE id = ?`), id.String())
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFoundf("job %s", id)
	}
	if err != nil {
		return nil, common.StoreError("get job", err)
	}
	return job, nil
}

func (r *jobRepo) Cancel(ctx context.Context, id uuid.UUID) error {
	res, err := r.store.db.ExecContext(ctx,
		r.store.q(`UPDATE jobs SET status = ?, updated_at = ? WHERE id = ?`),
		string(constants.JobStatusFailed),
		formatTime(time.Now()),
		id.String(),
	)
	if err != nil {
		r.logger.Error("failed to cancel job", "job_id", id, "error", err)
		return common.StoreError("cancel job", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.NotFoundf("job %s", id)
	}
	r.logger.Info("job cancelled", "job_id", id)
	return nil
}

func (r *jobRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return common.StoreError("delete job", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, r.store.q(`DELETE FROM job_files WHERE job_id = ?`), id.String()); err != nil {
		return common.StoreError("delete job files", err)
	}
	res, err := tx.ExecContext(ctx, r.store.q(`DELETE FROM jobs WHERE id = ?`), id.String())
	if err != nil {
		return common.StoreError("delete job", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.NotFoundf("job %s", id)
	}
	if err := tx.Commit(); err != nil {
		return common.StoreError("delete job", err)
	}
	r.logger.Info("job deleted", "job_id", id)
	return nil
}

func (r *jobRepo) RecomputeSummary(ctx context.Context, id uuid.UUID) (*entity.Summary, constants.JobStatus, error) {
	rows, err := r.store.db.QueryContext(ctx, r.store.q(
		`SELECT extraction_status, processing_status, COUNT(*)
         FROM job_files WHERE job_id = ?
         GROUP BY extraction_status, processing_status`),
		id.String(),
	)
	if err != nil {
		return nil, "", common.StoreError("scan job files", err)
	}
	defer rows.Close()

	var counts []rollup.StageCount
	for rows.Next() {
		var c rollup.StageCount
		if err := rows.Scan(&c.Extraction, &c.Processing, &c.Count); err != nil {
			return nil, "", common.StoreError("scan stage counts", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, "", common.StoreError("scan stage counts", err)
	}

	summary, status := rollup.Summarize(counts)
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return nil, "", fmt.Errorf("marshal summary: %w", err)
	}

	res, err := r.store.db.ExecContext(ctx,
		r.store.q(`UPDATE jobs SET summary = ?, status = ?, updated_at = ? WHERE id = ?`),
		string(summaryJSON),
		string(status),
		formatTime(time.Now()),
		id.String(),
	)
	if err != nil {
		r.logger.Error("failed to write job rollup", "job_id", id, "error", err)
		return nil, "", common.StoreError("write job rollup", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, "", common.NotFoundf("job %s", id)
	}

	r.logger.Info("job rollup recomputed", "job_id", id, "status", status, "total", summary.Total)
	return summary, status, nil
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*entity.Job, error) {
	var (
		idStr      string
		status     string
		mode       string
		schemaRaw  sql.NullString
		enrichment int
		summaryRaw sql.NullString
		createdRaw string
		updatedRaw string
	)
	if err := scanner.Scan(&idStr, &status, &mode, &schemaRaw, &enrichment, &summaryRaw, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("parse job id: %w", err)
	}

	job := &entity.Job{
		ID:                id,
		Status:            constants.JobStatus(status),
		ExtractionMode:    mode,
		EnrichmentEnabled: enrichment != 0,
	}
	if schemaRaw.Valid {
		job.ProcessingSchema = json.RawMessage(schemaRaw.String)
	}
	if summaryRaw.Valid {
		var summary entity.Summary
		if err := json.Unmarshal([]byte(summaryRaw.String), &summary); err == nil {
			job.Summary = &summary
		}
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	return job, nil
}
