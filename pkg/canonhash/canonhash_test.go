package canonhash

import (
	"strings"
	"testing"
)

func TestSumObjectDeterministicForSameState(t *testing.T) {
	a := map[string]any{
		"b": 2,
		"a": map[string]any{"y": 2, "x": 1},
	}
	b := map[string]any{
		"a": map[string]any{"x": 1, "y": 2},
		"b": 2,
	}

	ha, _, err := SumObject(a)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	hb, _, err := SumObject(b)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if ha != hb {
		t.Fatalf("expected same hash, got %s vs %s", ha, hb)
	}
	if !strings.HasPrefix(ha, Prefix) {
		t.Fatalf("expected %s prefix, got %s", Prefix, ha)
	}
}

func TestSumObjectChangesWhenStateChanges(t *testing.T) {
	a := map[string]any{"a": 1}
	b := map[string]any{"a": 2}
	ha, _, _ := SumObject(a)
	hb, _, _ := SumObject(b)
	if ha == hb {
		t.Fatalf("expected different hashes")
	}
}

func TestSumObjectIgnoresStructFieldOrder(t *testing.T) {
	type gatesAB struct {
		Status string `json:"status"`
		Lead   bool   `json:"lead_approved"`
	}
	type gatesBA struct {
		Lead   bool   `json:"lead_approved"`
		Status string `json:"status"`
	}
	same, err := Equal(gatesAB{Status: "inapproval", Lead: true}, gatesBA{Lead: true, Status: "inapproval"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !same {
		t.Fatalf("expected struct field order not to matter")
	}
}

func TestCanonicalSortsNestedKeys(t *testing.T) {
	b, err := Canonical(map[string]any{"z": []any{map[string]any{"b": 1, "a": 2}}, "a": "x"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	want := `{"a":"x","z":[{"a":2,"b":1}]}`
	if string(b) != want {
		t.Fatalf("expected %s, got %s", want, b)
	}
}
