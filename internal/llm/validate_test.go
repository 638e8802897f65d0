package llm

import (
	"encoding/json"
	"testing"
)

func TestValidateAgainstSchema(t *testing.T) {
	schema := json.RawMessage(`{
		"type": "object",
		"required": ["total"],
		"properties": {
			"total": {"type": "string"},
			"vendor": {"type": "string"}
		}
	}`)

	if err := ValidateAgainstSchema(schema, json.RawMessage(`{"total":"10.00","vendor":"ACME"}`)); err != nil {
		t.Errorf("valid result rejected: %v", err)
	}
	if err := ValidateAgainstSchema(schema, json.RawMessage(`{"vendor":"ACME"}`)); err == nil {
		t.Error("missing required field accepted")
	}
	if err := ValidateAgainstSchema(schema, json.RawMessage(`{"total":42}`)); err == nil {
		t.Error("wrong type accepted")
	}
}

func TestValidateAgainstSchemaBadInputs(t *testing.T) {
	if err := ValidateAgainstSchema(json.RawMessage(`{"type": 5}`), json.RawMessage(`{}`)); err == nil {
		t.Error("invalid schema accepted")
	}
	if err := ValidateAgainstSchema(json.RawMessage(`{"type":"object"}`), json.RawMessage(`not json`)); err == nil {
		t.Error("malformed result accepted")
	}
}
