package enrich

import (
	"reflect"
	"testing"
)

func TestFillGaps(t *testing.T) {
	dst := map[string]any{
		"vendor":   "",
		"total":    "10.00",
		"tags":     []any{},
		"missing":  nil,
		"address":  map[string]any{"city": "Lagos", "country": ""},
		"keepMap":  map[string]any{"a": 1},
		"untyped4": 0,
	}
	src := map[string]any{
		"vendor":   "ACME",
		"total":    "999.99",
		"tags":     []any{"invoice"},
		"missing":  "filled",
		"extra":    "new",
		"address":  map[string]any{"city": "Abuja", "country": "NG", "zip": "100001"},
		"untyped4": 7,
	}

	fillGaps(dst, src)

	if dst["vendor"] != "ACME" {
		t.Errorf("empty string not filled: %v", dst["vendor"])
	}
	if dst["total"] != "10.00" {
		t.Errorf("populated field overwritten: %v", dst["total"])
	}
	if !reflect.DeepEqual(dst["tags"], []any{"invoice"}) {
		t.Errorf("empty slice not filled: %v", dst["tags"])
	}
	if dst["missing"] != "filled" {
		t.Errorf("nil value not filled: %v", dst["missing"])
	}
	if dst["extra"] != "new" {
		t.Errorf("absent key not added: %v", dst["extra"])
	}
	if dst["untyped4"] != 0 {
		t.Errorf("zero int treated as a gap: %v", dst["untyped4"])
	}

	addr, ok := dst["address"].(map[string]any)
	if !ok {
		t.Fatalf("address replaced instead of merged: %T", dst["address"])
	}
	if addr["city"] != "Lagos" {
		t.Errorf("nested populated field overwritten: %v", addr["city"])
	}
	if addr["country"] != "NG" {
		t.Errorf("nested gap not filled: %v", addr["country"])
	}
	if addr["zip"] != "100001" {
		t.Errorf("nested absent key not added: %v", addr["zip"])
	}
}

func TestFillGapsEmptyDestinationMap(t *testing.T) {
	dst := map[string]any{"meta": map[string]any{}}
	fillGaps(dst, map[string]any{"meta": map[string]any{"k": "v"}})

	meta, ok := dst["meta"].(map[string]any)
	if !ok || meta["k"] != "v" {
		t.Errorf("empty map not treated as a gap: %v", dst["meta"])
	}
}
