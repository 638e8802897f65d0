package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"docflow/constants"
	"docflow/internal/common"
	"docflow/internal/entity"
)

// TruncationMarker is appended to free-text extraction fields that were cut
// at the configured ceiling.
const TruncationMarker = "\n[truncated]"

// DefaultMaxTextSize is the ceiling applied to free-text extraction fields.
const DefaultMaxTextSize = 1_000_000

// ExtractionPayload carries the outputs of a completed extraction.
type ExtractionPayload struct {
	Text     string
	Tables   json.RawMessage
	Markdown string
	Pages    json.RawMessage
	Metadata json.RawMessage
}

// ProcessingOutcome carries the outcome of an AI processing attempt.
type ProcessingOutcome struct {
	Status   constants.StageStatus
	Result   json.RawMessage
	Error    string
	Metadata json.RawMessage
}

// Enricher runs the enrichment chain against a working copy of a processing
// result. It returns the enriched result and whether the file should be
// flagged for review. The repository invokes it only for enrichment-enabled
// jobs on completed outcomes; its errors are logged and swallowed.
type Enricher interface {
	Enrich(ctx context.Context, result json.RawMessage, filename string) (json.RawMessage, bool, error)
}

type JobFileRepository interface {
	// Register creates a file against a job in the all-pending state.
	Register(ctx context.Context, jobID uuid.UUID, filename string, size int64, hash string) (*entity.JobFile, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.JobFile, error)
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]*entity.JobFile, error)
	// ClaimPending atomically moves up to limit uploaded, extraction-pending
	// files to extracting and returns their ids, oldest first. A file is
	// handed out once; concurrent dispatchers and repeated polls cannot claim
	// the same file twice.
	ClaimPending(ctx context.Context, limit int) ([]uuid.UUID, error)

	SetBlobKey(ctx context.Context, id uuid.UUID, key string) error
	MarkUploading(ctx context.Context, id uuid.UUID) error
	// RecordUploadOutcome applies a terminal upload outcome. Every outcome
	// stamps last_retry_at; failed outcomes additionally increment
	// retry_count. No retry ceiling is enforced here — that policy belongs to
	// the scheduler reading the counter.
	RecordUploadOutcome(ctx context.Context, id uuid.UUID, status constants.UploadStatus, uploadErr string) error

	MarkExtracting(ctx context.Context, id uuid.UUID) error
	// RecordExtraction applies a terminal extraction outcome. Completed
	// payloads have their free-text fields cut at the configured ceiling with
	// a truncation marker instead of failing the write; failed outcomes write
	// only the error and leave prior payload fields untouched.
	RecordExtraction(ctx context.Context, id uuid.UUID, status constants.StageStatus, payload *ExtractionPayload, extractErr string) error

	MarkProcessing(ctx context.Context, id uuid.UUID) error
	// RecordProcessing applies a terminal processing outcome. The first
	// completed outcome captures its unmodified result into actual_result via
	// a single-statement conditional update, so racing workers cannot both
	// win the capture. Enrichment-enabled jobs have the enrichment chain run
	// against a working copy; its output is what lands in result.
	RecordProcessing(ctx context.Context, id uuid.UUID, outcome ProcessingOutcome) error
	// ResetProcessing returns the file to pending so a new attempt may reach
	// a new terminal state. The captured actual_result and first processed_at
	// stamp survive resets.
	ResetProcessing(ctx context.Context, id uuid.UUID) error
}

type jobFileRepo struct {
	store       *Store
	logger      *slog.Logger
	maxTextSize int
	enricher    Enricher
}

// FileOption configures the job file repository.
type FileOption func(*jobFileRepo)

// WithMaxTextSize overrides the free-text ceiling for extraction payloads.
func WithMaxTextSize(n int) FileOption {
	return func(r *jobFileRepo) {
		if n > 0 {
			r.maxTextSize = n
		}
	}
}

// WithEnricher wires the enrichment chain into the processing writer.
func WithEnricher(e Enricher) FileOption {
	return func(r *jobFileRepo) { r.enricher = e }
}

func NewJobFileRepository(store *Store, logger *slog.Logger, opts ...FileOption) JobFileRepository {
	if logger == nil {
		logger = slog.Default()
	}
	r := &jobFileRepo{store: store, logger: logger, maxTextSize: DefaultMaxTextSize}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

const fileColumns = `id, job_id, filename, file_size, hash, blob_key,
    upload_status, upload_error, retry_count, last_retry_at,
    extraction_status, extracted_text, extracted_tables, markdown, pages, extraction_metadata, extraction_error,
    processing_status, result, actual_result, processing_metadata, processing_error, processed_at, needs_review,
    created_at, updated_at`

func (r *jobFileRepo) Register(ctx context.Context, jobID uuid.UUID, filename string, size int64, hash string) (*entity.JobFile, error) {
	var exists int
	err := r.store.db.QueryRowContext(ctx, r.store.q(`SELECT 1 FROM jobs WHERE id = ?`), jobID.String()).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFoundf("job %s", jobID)
	}
	if err != nil {
		return nil, common.StoreError("lookup job", err)
	}

	id := uuid.New()
	now := time.Now().UTC()
	ts := formatTime(now)

	_, err = r.store.db.ExecContext(ctx, r.store.q(
		`INSERT INTO job_files (id, job_id, filename, file_size, hash, upload_status, extraction_status, processing_status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		id.String(),
		jobID.String(),
		filename,
		size,
		hash,
		string(constants.UploadPending),
		string(constants.StagePending),
		string(constants.StagePending),
		ts,
		ts,
	)
	if err != nil {
		r.logger.Error("failed to register file", "job_id", jobID, "filename", filename, "error", err)
		return nil, common.StoreError("register file", err)
	}

	r.logger.Info("file registered", "job_id", jobID, "file_id", id, "filename", filename, "size", size)
	return &entity.JobFile{
		ID:               id,
		JobID:            jobID,
		Filename:         filename,
		FileSize:         size,
		Hash:             hash,
		UploadStatus:     constants.UploadPending,
		ExtractionStatus: constants.StagePending,
		ProcessingStatus: constants.StagePending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

func (r *jobFileRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.JobFile, error) {
	row := r.store.db.QueryRowContext(ctx,
		r.store.q(`SELECT `+fileColumns+` FROM job_files WHERE id = ?`), id.String())
	file, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFoundf("file %s", id)
	}
	if err != nil {
		return nil, common.StoreError("get file", err)
	}
	return file, nil
}

func (r *jobFileRepo) ListByJob(ctx context.Context, jobID uuid.UUID) ([]*entity.JobFile, error) {
	rows, err := r.store.db.QueryContext(ctx,
		r.store.q(`SELECT `+fileColumns+` FROM job_files WHERE job_id = ? ORDER BY created_at, id`), jobID.String())
	if err != nil {
		return nil, common.StoreError("list files", err)
	}
	defer rows.Close()

	var files []*entity.JobFile
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, common.StoreError("scan file", err)
		}
		files = append(files, file)
	}
	if err := rows.Err(); err != nil {
		return nil, common.StoreError("list files", err)
	}
	return files, nil
}

func (r *jobFileRepo) ClaimPending(ctx context.Context, limit int) ([]uuid.UUID, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.store.db.QueryContext(ctx, r.store.q(
		`UPDATE job_files
         SET extraction_status = ?, updated_at = ?
         WHERE id IN (
             SELECT id FROM job_files
             WHERE upload_status = ? AND extraction_status = ?
             ORDER BY created_at, id LIMIT ?)
         RETURNING id`),
		string(constants.StageProcessing),
		formatTime(time.Now()),
		string(constants.UploadCompleted),
		string(constants.StagePending),
		limit,
	)
	if err != nil {
		return nil, common.StoreError("claim pending files", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var idStr string
		if err := rows.Scan(&idStr); err != nil {
			return nil, common.StoreError("scan claimed file", err)
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("parse file id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *jobFileRepo) SetBlobKey(ctx context.Context, id uuid.UUID, key string) error {
	return r.exec(ctx, "set blob key",
		`UPDATE job_files SET blob_key = ?, updated_at = ? WHERE id = ?`,
		key, formatTime(time.Now()), id.String())
}

func (r *jobFileRepo) MarkUploading(ctx context.Context, id uuid.UUID) error {
	return r.exec(ctx, "mark uploading",
		`UPDATE job_files SET upload_status = ?, updated_at = ? WHERE id = ?`,
		string(constants.UploadUploading), formatTime(time.Now()), id.String())
}

func (r *jobFileRepo) RecordUploadOutcome(ctx context.Context, id uuid.UUID, status constants.UploadStatus, uploadErr string) error {
	if status != constants.UploadCompleted && status != constants.UploadFailed {
		return common.InvalidStatef("upload outcome must be completed or failed, got %q", status)
	}

	ts := formatTime(time.Now())
	res, err := r.store.db.ExecContext(ctx, r.store.q(
		`UPDATE job_files
         SET upload_status = ?,
             upload_error = ?,
             retry_count = retry_count + CASE WHEN ? = 'failed' THEN 1 ELSE 0 END,
             last_retry_at = ?,
             updated_at = ?
         WHERE id = ?`),
		string(status),
		nullableString(uploadErr),
		string(status),
		ts,
		ts,
		id.String(),
	)
	if err != nil {
		r.logger.Error("failed to record upload outcome", "file_id", id, "status", status, "error", err)
		return common.StoreError("record upload outcome", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.NotFoundf("file %s", id)
	}

	if status == constants.UploadFailed {
		r.logger.Warn("upload failed", "file_id", id, "error", uploadErr)
	} else {
		r.logger.Info("upload completed", "file_id", id)
	}
	return nil
}

func (r *jobFileRepo) MarkExtracting(ctx context.Context, id uuid.UUID) error {
	return r.exec(ctx, "mark extracting",
		`UPDATE job_files SET extraction_status = ?, updated_at = ? WHERE id = ?`,
		string(constants.StageProcessing), formatTime(time.Now()), id.String())
}

func (r *jobFileRepo) RecordExtraction(ctx context.Context, id uuid.UUID, status constants.StageStatus, payload *ExtractionPayload, extractErr string) error {
	if !status.Terminal() {
		return common.InvalidStatef("extraction outcome must be terminal, got %q", status)
	}

	ts := formatTime(time.Now())
	var (
		res sql.Result
		err error
	)
	if status == constants.StageFailed {
		// Only the error is written; prior payload fields are left untouched.
		res, err = r.store.db.ExecContext(ctx, r.store.q(
			`UPDATE job_files
             SET extraction_status = ?, extraction_error = ?, updated_at = ?
             WHERE id = ?`),
			string(status), nullableString(extractErr), ts, id.String())
	} else {
		if payload == nil {
			return common.InvalidStatef("completed extraction outcome must carry a payload")
		}
		res, err = r.store.db.ExecContext(ctx, r.store.q(
			`UPDATE job_files
             SET extraction_status = ?,
                 extracted_text = ?,
                 extracted_tables = ?,
                 markdown = ?,
                 pages = ?,
                 extraction_metadata = ?,
                 extraction_error = NULL,
                 updated_at = ?
             WHERE id = ?`),
			string(status),
			nullableString(truncateText(payload.Text, r.maxTextSize)),
			nullableBytes(payload.Tables),
			nullableString(truncateText(payload.Markdown, r.maxTextSize)),
			nullableBytes(payload.Pages),
			nullableBytes(payload.Metadata),
			ts,
			id.String())
	}
	if err != nil {
		r.logger.Error("failed to record extraction outcome", "file_id", id, "status", status, "error", err)
		return common.StoreError("record extraction outcome", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.NotFoundf("file %s", id)
	}

	r.logger.Info("extraction outcome recorded", "file_id", id, "status", status)
	return nil
}

func (r *jobFileRepo) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	return r.exec(ctx, "mark processing",
		`UPDATE job_files SET processing_status = ?, updated_at = ? WHERE id = ?`,
		string(constants.StageProcessing), formatTime(time.Now()), id.String())
}

func (r *jobFileRepo) RecordProcessing(ctx context.Context, id uuid.UUID, outcome ProcessingOutcome) error {
	if !outcome.Status.Terminal() {
		return common.InvalidStatef("processing outcome must be terminal, got %q", outcome.Status)
	}
	if outcome.Status == constants.StageCompleted && len(outcome.Result) == 0 {
		return common.InvalidStatef("completed processing outcome must carry a result")
	}

	ts := formatTime(time.Now())

	if outcome.Status == constants.StageFailed {
		res, err := r.store.db.ExecContext(ctx, r.store.q(
			`UPDATE job_files
             SET processing_status = ?,
                 processing_error = ?,
                 processing_metadata = ?,
                 processed_at = COALESCE(processed_at, ?),
                 updated_at = ?
             WHERE id = ?`),
			string(outcome.Status),
			nullableString(outcome.Error),
			nullableBytes(outcome.Metadata),
			ts,
			ts,
			id.String(),
		)
		if err != nil {
			r.logger.Error("failed to record processing outcome", "file_id", id, "error", err)
			return common.StoreError("record processing outcome", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return common.NotFoundf("file %s", id)
		}
		r.logger.Warn("processing failed", "file_id", id, "error", outcome.Error)
		return nil
	}

	// Completed: look up the owning job's enrichment flag before the write.
	var (
		filename          string
		enrichmentEnabled int
	)
	err := r.store.db.QueryRowContext(ctx, r.store.q(
		`SELECT f.filename, j.enrichment_enabled
         FROM job_files f JOIN jobs j ON j.id = f.job_id
         WHERE f.id = ?`),
		id.String(),
	).Scan(&filename, &enrichmentEnabled)
	if errors.Is(err, sql.ErrNoRows) {
		return common.NotFoundf("file %s", id)
	}
	if err != nil {
		return common.StoreError("lookup file", err)
	}

	// The incoming result is the capture value; enrichment only ever touches
	// the working copy that lands in result.
	finalResult := outcome.Result
	flagged := false
	if enrichmentEnabled != 0 && r.enricher != nil {
		working := make(json.RawMessage, len(outcome.Result))
		copy(working, outcome.Result)
		enriched, review, enrichErr := r.enricher.Enrich(ctx, working, filename)
		if enrichErr != nil {
			// Best-effort: enrichment must never fail the surrounding write.
			r.logger.Warn("enrichment failed, keeping unenriched result", "file_id", id, "error", enrichErr)
		} else {
			finalResult = enriched
			flagged = review
		}
	}

	// actual_result is set only if currently null; the store's row-level
	// atomicity decides the capture race between workers.
	res, err := r.store.db.ExecContext(ctx, r.store.q(
		`UPDATE job_files
         SET processing_status = ?,
             result = ?,
             actual_result = COALESCE(actual_result, ?),
             processing_error = NULL,
             processing_metadata = ?,
             processed_at = COALESCE(processed_at, ?),
             needs_review = CASE WHEN ? = 1 THEN 1 ELSE needs_review END,
             updated_at = ?
         WHERE id = ?`),
		string(outcome.Status),
		string(finalResult),
		string(outcome.Result),
		nullableBytes(outcome.Metadata),
		ts,
		boolToInt(flagged),
		ts,
		id.String(),
	)
	if err != nil {
		r.logger.Error("failed to record processing outcome", "file_id", id, "error", err)
		return common.StoreError("record processing outcome", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.NotFoundf("file %s", id)
	}

	r.logger.Info("processing completed", "file_id", id, "enriched", flagged)
	return nil
}

func (r *jobFileRepo) ResetProcessing(ctx context.Context, id uuid.UUID) error {
	return r.exec(ctx, "reset processing",
		`UPDATE job_files SET processing_status = ?, processing_error = NULL, updated_at = ? WHERE id = ?`,
		string(constants.StagePending), formatTime(time.Now()), id.String())
}

func (r *jobFileRepo) exec(ctx context.Context, op, query string, args ...any) error {
	res, err := r.store.db.ExecContext(ctx, r.store.q(query), args...)
	if err != nil {
		r.logger.Error("store write failed", "op", op, "error", err)
		return common.StoreError(op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.NotFoundf("file not found (%s)", op)
	}
	return nil
}

// truncateText cuts s at the ceiling (backing off to a rune boundary) and
// appends the truncation marker. Text at or below the ceiling is returned
// unchanged.
func truncateText(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + TruncationMarker
}

func scanFile(scanner interface{ Scan(dest ...any) error }) (*entity.JobFile, error) {
	var (
		idStr        string
		jobIDStr     string
		filename     string
		fileSize     int64
		hash         string
		blobKey      sql.NullString
		uploadStatus string
		uploadErr    sql.NullString
		retryCount   int
		lastRetryRaw sql.NullString
		extStatus    string
		extText      sql.NullString
		extTables    sql.NullString
		markdown     sql.NullString
		pages        sql.NullString
		extMeta      sql.NullString
		extErr       sql.NullString
		procStatus   string
		result       sql.NullString
		actualResult sql.NullString
		procMeta     sql.NullString
		procErr      sql.NullString
		processedRaw sql.NullString
		needsReview  int
		createdRaw   string
		updatedRaw   string
	)

	if err := scanner.Scan(
		&idStr, &jobIDStr, &filename, &fileSize, &hash, &blobKey,
		&uploadStatus, &uploadErr, &retryCount, &lastRetryRaw,
		&extStatus, &extText, &extTables, &markdown, &pages, &extMeta, &extErr,
		&procStatus, &result, &actualResult, &procMeta, &procErr, &processedRaw, &needsReview,
		&createdRaw, &updatedRaw,
	); err != nil {
		return nil, err
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("parse file id: %w", err)
	}
	jobID, err := uuid.Parse(jobIDStr)
	if err != nil {
		return nil, fmt.Errorf("parse job id: %w", err)
	}

	file := &entity.JobFile{
		ID:               id,
		JobID:            jobID,
		Filename:         filename,
		FileSize:         fileSize,
		Hash:             hash,
		UploadStatus:     constants.UploadStatus(uploadStatus),
		RetryCount:       retryCount,
		ExtractionStatus: constants.StageStatus(extStatus),
		ProcessingStatus: constants.StageStatus(procStatus),
		NeedsReview:      needsReview != 0,
	}
	if blobKey.Valid {
		file.BlobKey = blobKey.String
	}
	file.ExtractedText = nullStringPtr(extText)
	file.Markdown = nullStringPtr(markdown)
	file.ExtractionError = nullStringPtr(extErr)
	file.ProcessingError = nullStringPtr(procErr)
	if uploadErr.Valid {
		// upload_error surfaces through the entity only when set
		v := uploadErr.String
		file.UploadError = &v
	}
	file.ExtractedTables = nullRawMessage(extTables)
	file.Pages = nullRawMessage(pages)
	file.ExtractionMetadata = nullRawMessage(extMeta)
	file.Result = nullRawMessage(result)
	file.ActualResult = nullRawMessage(actualResult)
	file.ProcessingMetadata = nullRawMessage(procMeta)

	if lastRetryRaw.Valid {
		if t, err := parseTimeString(lastRetryRaw.String); err == nil {
			file.LastRetryAt = &t
		}
	}
	if processedRaw.Valid {
		if t, err := parseTimeString(processedRaw.String); err == nil {
			file.ProcessedAt = &t
		}
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		file.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		file.UpdatedAt = updated
	}
	return file, nil
}

func nullStringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullRawMessage(v sql.NullString) json.RawMessage {
	if !v.Valid || v.String == "" {
		return nil
	}
	return json.RawMessage(v.String)
}
