package catalog

import (
	"math"
	"reflect"
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	neg := -5.0
	raw := []Entry{
		{Code: " 23 ", Title: "Level B", Fee: 41.4, MutuallyExclusiveWith: []string{"36", " ", "23", "36", "44"}},
		{Code: "", Title: "no code"},
		{Code: "23", Title: "duplicate"},
		{Code: "36", Title: "  ", Fee: math.NaN(), TimeThreshold: &neg},
		{Code: "44", Title: "Level D", Fee: -1, Conditions: []Condition{{Expression: " "}, {Expression: " true ", Message: " ok "}}},
	}

	entries, issues := Normalize(raw)

	var codes []string
	for _, e := range entries {
		codes = append(codes, e.Code)
	}
	if !reflect.DeepEqual(codes, []string{"23", "36", "44"}) {
		t.Fatalf("codes = %v, want [23 36 44]", codes)
	}

	if !reflect.DeepEqual(entries[0].MutuallyExclusiveWith, []string{"36", "44"}) {
		t.Errorf("exclusions = %v, want [36 44]", entries[0].MutuallyExclusiveWith)
	}
	if entries[0].Title != "Level B" {
		t.Errorf("first duplicate should win, got title %q", entries[0].Title)
	}

	if entries[1].Title != "36" || entries[1].Fee != 0 || entries[1].TimeThreshold != nil {
		t.Errorf("entry 36 = %+v, want title from code, zero fee, no threshold", entries[1])
	}
	if entries[1].Flags == nil {
		t.Error("missing flags should become an empty map")
	}

	if entries[2].Fee != 0 {
		t.Errorf("negative fee should be clamped, got %v", entries[2].Fee)
	}
	if len(entries[2].Conditions) != 1 || entries[2].Conditions[0].Expression != "true" || entries[2].Conditions[0].Message != "ok" {
		t.Errorf("conditions = %+v", entries[2].Conditions)
	}

	for _, e := range entries {
		if err := ValidateEntry(e); err != nil {
			t.Errorf("normalized entry %s should validate: %v", e.Code, err)
		}
	}

	var text []string
	for _, issue := range issues {
		text = append(text, issue.String())
	}
	joined := strings.Join(text, "\n")
	for _, want := range []string{"no code", "duplicate", "self reference", "missing title", "invalid fee", "time threshold", "empty condition"} {
		if !strings.Contains(joined, want) {
			t.Errorf("issues should mention %q, got:\n%s", want, joined)
		}
	}
}

// TestNormalizeDoesNotMutateInput verifies raw entries are left untouched
func TestNormalizeDoesNotMutateInput(t *testing.T) {
	raw := []Entry{{Code: "23", Title: "Level B", MutuallyExclusiveWith: []string{"23", "36"}}}

	Normalize(raw)

	if !reflect.DeepEqual(raw[0].MutuallyExclusiveWith, []string{"23", "36"}) {
		t.Errorf("input mutated: %v", raw[0].MutuallyExclusiveWith)
	}
}

// TestNormalizeDropsUnstorableEntries verifies normalized output always passes ValidateEntry
func TestNormalizeDropsUnstorableEntries(t *testing.T) {
	raw := []Entry{
		{Code: "23 A", Title: "code with a space"},
		{Code: strings.Repeat("9", maxCodeLength+1), Title: "code too long"},
		{Code: "36", Title: "Level C", Flags: Flags{"after-hours": true, "telehealth": true}},
		{Code: "23 A", Title: "still invalid"},
		{Code: "44", Title: "Level D", MutuallyExclusiveWith: make([]string, 0)},
	}

	entries, issues := Normalize(raw)

	var codes []string
	for _, e := range entries {
		codes = append(codes, e.Code)
		if err := ValidateEntry(e); err != nil {
			t.Errorf("normalized entry %s should validate: %v", e.Code, err)
		}
	}
	if !reflect.DeepEqual(codes, []string{"36", "44"}) {
		t.Fatalf("codes = %v, want [36 44]", codes)
	}
	if !reflect.DeepEqual(entries[0].Flags, Flags{"telehealth": true}) {
		t.Errorf("flags = %v, want only telehealth", entries[0].Flags)
	}
	if _, ok := raw[2].Flags["after-hours"]; !ok {
		t.Error("input flags mutated")
	}

	var text []string
	for _, issue := range issues {
		text = append(text, issue.String())
	}
	joined := strings.Join(text, "\n")
	for _, want := range []string{`invalid flag name "after-hours" removed`, "23 A: invalid catalog entry", "exceeds maximum", "dropped"} {
		if !strings.Contains(joined, want) {
			t.Errorf("issues should mention %q, got:\n%s", want, joined)
		}
	}
	if strings.Contains(joined, "duplicate") {
		t.Errorf("a dropped entry should not make a later one a duplicate, got:\n%s", joined)
	}
}

func TestNormalizeEmpty(t *testing.T) {
	entries, issues := Normalize(nil)
	if len(entries) != 0 || len(issues) != 0 {
		t.Errorf("Normalize(nil) = %v, %v", entries, issues)
	}
}
