package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// HTTPLookup calls the enrichment lookup service over HTTP. A 404 from the
// service is a LookupNoMatch outcome, not an error.
type HTTPLookup struct {
	baseURL string
	client  *http.Client
}

func NewHTTPLookup(baseURL string, timeout time.Duration) *HTTPLookup {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPLookup{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (l *HTTPLookup) Lookup(ctx context.Context, identifier string) (LookupOutcome, error) {
	u := fmt.Sprintf("%s/lookup?identifier=%s", l.baseURL, url.QueryEscape(identifier))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return LookupOutcome{}, fmt.Errorf("build lookup request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return LookupOutcome{}, fmt.Errorf("lookup request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return LookupOutcome{State: LookupNoMatch}, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return LookupOutcome{}, fmt.Errorf("lookup service returned %d: %s", resp.StatusCode, body)
	}

	var record map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return LookupOutcome{}, fmt.Errorf("decode lookup response: %w", err)
	}
	return LookupOutcome{State: LookupFound, Record: record}, nil
}
