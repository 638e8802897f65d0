package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPEngine calls the AI processing service over HTTP. The service receives
// the extracted content plus the target schema and answers with the populated
// structured result.
type HTTPEngine struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPEngine(baseURL, apiKey string, timeout time.Duration) *HTTPEngine {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &HTTPEngine{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type processRequest struct {
	Content Content         `json:"content"`
	Schema  json.RawMessage `json:"schema,omitempty"`
}

type processResponse struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error,omitempty"`
}

func (e *HTTPEngine) Process(ctx context.Context, content Content, schema json.RawMessage) (json.RawMessage, error) {
	payload, err := json.Marshal(processRequest{Content: content, Schema: schema})
	if err != nil {
		return nil, fmt.Errorf("marshal process request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/process", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build process request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("process request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("processing engine returned %d: %s", resp.StatusCode, body)
	}

	var out processResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode process response: %w", err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("processing engine error: %s", out.Error)
	}
	if len(out.Result) == 0 {
		return nil, fmt.Errorf("processing engine returned no result")
	}
	return out.Result, nil
}
