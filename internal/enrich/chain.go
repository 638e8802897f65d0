// Package enrich implements the best-effort post-processing chain that merges
// supplementary looked-up data into a structured result. The chain is fixed:
// normalize identifier → correct → lookup → merge → flag for review. It never
// fails the processing write that invokes it.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"unicode"
)

// DefaultReferenceField is the result field the chain reads the document
// identifier from when no field is configured.
const DefaultReferenceField = "reference"

// Chain runs the enrichment pipeline against a working copy of a processing
// result. It satisfies the repository's Enricher contract.
type Chain struct {
	lookup LookupService
	logger *slog.Logger
	field  string
}

// Option configures the chain.
type Option func(*Chain)

// WithReferenceField overrides the result field holding the identifier.
func WithReferenceField(name string) Option {
	return func(c *Chain) {
		if name != "" {
			c.field = name
		}
	}
}

func NewChain(lookup LookupService, logger *slog.Logger, opts ...Option) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Chain{lookup: lookup, logger: logger, field: DefaultReferenceField}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enrich runs the chain. It returns the (possibly) enriched result and
// whether the file should be flagged for manual review. Lookup failures are
// logged and swallowed; the corrected-but-unmerged result is still returned.
func (c *Chain) Enrich(ctx context.Context, result json.RawMessage, filename string) (json.RawMessage, bool, error) {
	var doc map[string]any
	if err := json.Unmarshal(result, &doc); err != nil {
		return result, false, fmt.Errorf("result is not an object: %w", err)
	}

	norm := c.normalize(doc, filename)
	if norm.Identifier == "" {
		// Nothing to key the lookup on; leave the result untouched.
		return result, false, nil
	}

	if norm.State == Corrected {
		doc[c.field] = norm.Identifier
	}

	outcome, err := c.lookup.Lookup(ctx, norm.Identifier)
	if err != nil {
		c.logger.Warn("enrichment lookup failed", "identifier", norm.Identifier, "error", err)
		return marshalDoc(doc, result), false, nil
	}
	if outcome.State != LookupFound {
		return marshalDoc(doc, result), false, nil
	}

	fillGaps(doc, outcome.Record)
	c.logger.Info("enrichment merged", "identifier", norm.Identifier, "fields", len(outcome.Record))
	return marshalDoc(doc, result), true, nil
}

// normalize derives the canonical identifier: prefer the explicit reference
// field, otherwise fall back to the filename stem.
func (c *Chain) normalize(doc map[string]any, filename string) Normalization {
	if raw, ok := doc[c.field].(string); ok && strings.TrimSpace(raw) != "" {
		canonical := canonicalize(raw)
		if canonical == raw {
			return Normalization{State: AlreadyCorrect, Identifier: canonical}
		}
		return Normalization{State: Corrected, Identifier: canonical}
	}

	stem := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	return Normalization{State: Corrected, Identifier: canonicalize(stem)}
}

// canonicalize strips everything but letters and digits and uppercases the rest.
func canonicalize(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

func marshalDoc(doc map[string]any, fallback json.RawMessage) json.RawMessage {
	out, err := json.Marshal(doc)
	if err != nil {
		return fallback
	}
	return out
}
