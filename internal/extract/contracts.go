package extract

import (
	"context"
	"encoding/json"
)

// Result is the output of a completed extraction: free text, detected tables,
// a markdown rendering, per-page data, and engine metadata. All fields are
// optional; what is populated depends on the requested mode.
type Result struct {
	Text     string          `json:"text,omitempty"`
	Tables   json.RawMessage `json:"tables,omitempty"`
	Markdown string          `json:"markdown,omitempty"`
	Pages    json.RawMessage `json:"pages,omitempty"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// Engine is the external extraction service the pipeline depends on. It
// receives an opaque blob reference, never the bytes themselves.
type Engine interface {
	Extract(ctx context.Context, blobKey string, mode string) (Result, error)
}
