package catalog

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func validEntry() Entry {
	threshold := 20.0
	return Entry{
		Code:                  "23",
		Title:                 "Professional attendance, Level B",
		Fee:                   41.40,
		TimeThreshold:         &threshold,
		Flags:                 Flags{FlagTelehealth: false},
		MutuallyExclusiveWith: []string{"36"},
		Conditions:            []Condition{{Expression: `consult.mode == "in_person"`}},
	}
}

// TestValidateEntry_Valid verifies a well-formed entry passes
func TestValidateEntry_Valid(t *testing.T) {
	if err := ValidateEntry(validEntry()); err != nil {
		t.Errorf("Expected valid entry, got error: %v", err)
	}
}

// TestValidateEntry_Code verifies code format rules
func TestValidateEntry_Code(t *testing.T) {
	valid := []string{"23", "A1", "91800", "10990-a", "K.1_2"}
	for _, code := range valid {
		e := validEntry()
		e.Code = code
		e.MutuallyExclusiveWith = nil
		if err := ValidateEntry(e); err != nil {
			t.Errorf("Code %q should be valid, got error: %v", code, err)
		}
	}

	invalid := []string{"", " 23", "-23", "23 36", "item/23", strings.Repeat("9", 33)}
	for _, code := range invalid {
		e := validEntry()
		e.Code = code
		e.MutuallyExclusiveWith = nil
		err := ValidateEntry(e)
		if err == nil {
			t.Errorf("Code %q should be invalid, got nil", code)
			continue
		}
		if !errors.Is(err, ErrInvalidEntry) {
			t.Errorf("Expected ErrInvalidEntry for code %q, got: %v", code, err)
		}
	}
}

// TestValidateEntry_Fields verifies per-field rejections
func TestValidateEntry_Fields(t *testing.T) {
	zero := 0.0
	tests := []struct {
		name   string
		mutate func(*Entry)
		want   string
	}{
		{"empty title", func(e *Entry) { e.Title = "  " }, "empty title"},
		{"negative fee", func(e *Entry) { e.Fee = -0.01 }, "invalid fee"},
		{"NaN fee", func(e *Entry) { e.Fee = math.NaN() }, "invalid fee"},
		{"infinite fee", func(e *Entry) { e.Fee = math.Inf(1) }, "invalid fee"},
		{"zero threshold", func(e *Entry) { e.TimeThreshold = &zero }, "time threshold"},
		{"bad flag name", func(e *Entry) { e.Flags = Flags{"after-hours": true} }, "invalid flag name"},
		{"self exclusion", func(e *Entry) { e.MutuallyExclusiveWith = []string{"23"} }, "itself"},
		{"blank exclusion", func(e *Entry) { e.MutuallyExclusiveWith = []string{""} }, "empty code"},
		{"blank condition", func(e *Entry) { e.Conditions = []Condition{{Expression: " "}} }, "empty expression"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := validEntry()
			tt.mutate(&e)
			err := ValidateEntry(e)
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !errors.Is(err, ErrInvalidEntry) {
				t.Errorf("Expected ErrInvalidEntry, got: %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error mentioning %q, got: %v", tt.want, err)
			}
		})
	}
}

// TestValidateEntry_Limits verifies maximum sizes
func TestValidateEntry_Limits(t *testing.T) {
	t.Run("flags", func(t *testing.T) {
		e := validEntry()
		e.Flags = Flags{}
		for i := 0; i < 51; i++ {
			e.Flags["flag_"+string(rune('a'+i%26))+string(rune('a'+i/26))] = true
		}
		err := ValidateEntry(e)
		if err == nil || !strings.Contains(err.Error(), "50") {
			t.Errorf("Expected error about max 50 flags, got: %v", err)
		}
	})

	t.Run("exclusions", func(t *testing.T) {
		e := validEntry()
		e.MutuallyExclusiveWith = make([]string, 201)
		for i := range e.MutuallyExclusiveWith {
			e.MutuallyExclusiveWith[i] = "X" + string(rune('A'+i%26)) + string(rune('A'+i/26))
		}
		err := ValidateEntry(e)
		if err == nil || !strings.Contains(err.Error(), "200") {
			t.Errorf("Expected error about max 200 exclusions, got: %v", err)
		}
	})

	t.Run("conditions", func(t *testing.T) {
		e := validEntry()
		e.Conditions = make([]Condition, 21)
		for i := range e.Conditions {
			e.Conditions[i] = Condition{Expression: "true"}
		}
		err := ValidateEntry(e)
		if err == nil || !strings.Contains(err.Error(), "20") {
			t.Errorf("Expected error about max 20 conditions, got: %v", err)
		}
	})
}

// TestValidateIdentifier verifies flag name rules
func TestValidateIdentifier(t *testing.T) {
	for _, name := range []string{"telehealth", "after_hours", "_internal", "Flag2"} {
		if err := validateIdentifier(name); err != nil {
			t.Errorf("Identifier %q should be valid, got error: %v", name, err)
		}
	}
	for _, name := range []string{"", "2flag", "after-hours", "has space", strings.Repeat("a", 101)} {
		if err := validateIdentifier(name); err == nil {
			t.Errorf("Identifier %q should be invalid, got nil", name)
		}
	}
}
