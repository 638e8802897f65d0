package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"docflow/constants"
)

// Job represents a processing job for data transfer between layers.
type Job struct {
	ID                uuid.UUID           `json:"id"`
	Status            constants.JobStatus `json:"status"`
	ExtractionMode    string              `json:"extraction_mode"`
	ProcessingSchema  json.RawMessage     `json:"processing_schema,omitempty"`
	EnrichmentEnabled bool                `json:"enrichment_enabled"`
	Summary           *Summary            `json:"summary,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

// Summary holds the derived per-job tallies. It is recomputed by the rollup
// and never hand-edited. Pairs keys are "<extraction_status>/<processing_status>";
// Extraction and Processing are the per-stage marginals of the same counts.
type Summary struct {
	Total      int            `json:"total"`
	Pairs      map[string]int `json:"pairs"`
	Extraction map[string]int `json:"extraction"`
	Processing map[string]int `json:"processing"`
}
