package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"docflow/constants"
)

// JobFile represents a file owned by a job for data transfer between layers.
// The three status pipelines (upload, extraction, processing) advance
// independently; result holds the current, possibly enriched or edited output
// while actual_result keeps the original AI output and is write-once.
type JobFile struct {
	ID        uuid.UUID `json:"id"`
	JobID     uuid.UUID `json:"job_id"`
	Filename  string    `json:"filename"`
	FileSize  int64     `json:"file_size"`
	Hash      string    `json:"hash"`
	BlobKey   string    `json:"blob_key,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UploadStatus constants.UploadStatus `json:"upload_status"`
	UploadError  *string                `json:"upload_error,omitempty"`
	RetryCount   int                    `json:"retry_count"`
	LastRetryAt  *time.Time             `json:"last_retry_at,omitempty"`

	ExtractionStatus   constants.StageStatus `json:"extraction_status"`
	ExtractedText      *string               `json:"extracted_text,omitempty"`
	ExtractedTables    json.RawMessage       `json:"extracted_tables,omitempty"`
	Markdown           *string               `json:"markdown,omitempty"`
	Pages              json.RawMessage       `json:"pages,omitempty"`
	ExtractionMetadata json.RawMessage       `json:"extraction_metadata,omitempty"`
	ExtractionError    *string               `json:"extraction_error,omitempty"`

	ProcessingStatus   constants.StageStatus `json:"processing_status"`
	Result             json.RawMessage       `json:"result,omitempty"`
	ActualResult       json.RawMessage       `json:"actual_result,omitempty"`
	ProcessingMetadata json.RawMessage       `json:"processing_metadata,omitempty"`
	ProcessingError    *string               `json:"processing_error,omitempty"`
	ProcessedAt        *time.Time            `json:"processed_at,omitempty"`
	NeedsReview        bool                  `json:"needs_review"`
}
