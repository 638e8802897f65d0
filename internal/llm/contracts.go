package llm

import (
	"context"
	"encoding/json"
)

// Content is the extracted material handed to the processing engine.
type Content struct {
	Text     string          `json:"text,omitempty"`
	Tables   json.RawMessage `json:"tables,omitempty"`
	Markdown string          `json:"markdown,omitempty"`
}

// Engine is the external AI processing service the pipeline depends on: it
// populates the job's target schema from extracted content and returns the
// structured result as raw JSON.
type Engine interface {
	Process(ctx context.Context, content Content, schema json.RawMessage) (json.RawMessage, error)
}
