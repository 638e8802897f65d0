package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

type fakeLookup struct {
	outcome    LookupOutcome
	err        error
	identifier string
	calls      int
}

func (f *fakeLookup) Lookup(_ context.Context, identifier string) (LookupOutcome, error) {
	f.calls++
	f.identifier = identifier
	return f.outcome, f.err
}

func decode(t *testing.T, raw json.RawMessage) map[string]any {
	t.Helper()
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	return doc
}

func TestEnrichMergesFoundRecord(t *testing.T) {
	lookup := &fakeLookup{outcome: LookupOutcome{
		State:  LookupFound,
		Record: map[string]any{"vendor": "ACME Corp", "total": "999.99"},
	}}
	chain := NewChain(lookup, nil)

	out, flagged, err := chain.Enrich(context.Background(),
		json.RawMessage(`{"reference":"INV123","total":"10.00","vendor":""}`), "a.pdf")
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if !flagged {
		t.Error("merged result not flagged for review")
	}

	doc := decode(t, out)
	if doc["vendor"] != "ACME Corp" {
		t.Errorf("vendor = %v, want gap filled", doc["vendor"])
	}
	if doc["total"] != "10.00" {
		t.Errorf("total = %v, populated field must not be overwritten", doc["total"])
	}
	if lookup.identifier != "INV123" {
		t.Errorf("lookup identifier = %q, want INV123", lookup.identifier)
	}
}

func TestEnrichNoMatchKeepsCorrectedResult(t *testing.T) {
	lookup := &fakeLookup{outcome: LookupOutcome{State: LookupNoMatch}}
	chain := NewChain(lookup, nil)

	out, flagged, err := chain.Enrich(context.Background(),
		json.RawMessage(`{"reference":"inv-123","total":"10.00"}`), "a.pdf")
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if flagged {
		t.Error("unmatched result must not be flagged")
	}

	doc := decode(t, out)
	if doc["reference"] != "INV123" {
		t.Errorf("reference = %v, want canonicalized INV123", doc["reference"])
	}
	if doc["total"] != "10.00" {
		t.Errorf("total = %v, want untouched", doc["total"])
	}
}

func TestEnrichLookupFailureIsSwallowed(t *testing.T) {
	lookup := &fakeLookup{err: errors.New("service unavailable")}
	chain := NewChain(lookup, nil)

	out, flagged, err := chain.Enrich(context.Background(),
		json.RawMessage(`{"reference":"inv 123"}`), "a.pdf")
	if err != nil {
		t.Fatalf("lookup failure must not surface: %v", err)
	}
	if flagged {
		t.Error("failed lookup must not flag the result")
	}

	doc := decode(t, out)
	if doc["reference"] != "INV123" {
		t.Errorf("reference = %v, correction must survive a failed lookup", doc["reference"])
	}
}

func TestEnrichFallsBackToFilenameStem(t *testing.T) {
	lookup := &fakeLookup{outcome: LookupOutcome{State: LookupNoMatch}}
	chain := NewChain(lookup, nil)

	if _, _, err := chain.Enrich(context.Background(),
		json.RawMessage(`{"total":"10.00"}`), "scans/inv_2024-001.pdf"); err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if lookup.identifier != "INV2024001" {
		t.Errorf("lookup identifier = %q, want filename-derived INV2024001", lookup.identifier)
	}
}

func TestEnrichCustomReferenceField(t *testing.T) {
	lookup := &fakeLookup{outcome: LookupOutcome{State: LookupNoMatch}}
	chain := NewChain(lookup, nil, WithReferenceField("invoice_number"))

	if _, _, err := chain.Enrich(context.Background(),
		json.RawMessage(`{"invoice_number":"ab-1"}`), "a.pdf"); err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if lookup.identifier != "AB1" {
		t.Errorf("lookup identifier = %q, want AB1", lookup.identifier)
	}
}

func TestEnrichNonObjectResult(t *testing.T) {
	lookup := &fakeLookup{}
	chain := NewChain(lookup, nil)

	raw := json.RawMessage(`[1,2,3]`)
	out, flagged, err := chain.Enrich(context.Background(), raw, "a.pdf")
	if err == nil {
		t.Fatal("want error for non-object result")
	}
	if flagged {
		t.Error("non-object result must not be flagged")
	}
	if string(out) != string(raw) {
		t.Errorf("result changed: %s", out)
	}
	if lookup.calls != 0 {
		t.Errorf("lookup called %d times for non-object result", lookup.calls)
	}
}

func TestCanonicalize(t *testing.T) {
	tests := []struct{ in, want string }{
		{"inv-123", "INV123"},
		{"INV123", "INV123"},
		{"  ab c/9 ", "ABC9"},
		{"---", ""},
	}
	for _, tt := range tests {
		if got := canonicalize(tt.in); got != tt.want {
			t.Errorf("canonicalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
