package rules

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/liamcoop/mbsrules/catalog"
)

func minutes(v float64) *float64 { return &v }

// TestEvaluateUnselectedCleanCandidatePasses verifies an unselected candidate with no violations passes
func TestEvaluateUnselectedCleanCandidatePasses(t *testing.T) {
	results := Evaluate([]RuleCandidate{
		{Code: "23", Title: "Level B", Fee: 41.40, TimeThreshold: minutes(20), MutuallyExclusiveWith: []string{"36"}},
	})

	if len(results) != 1 {
		t.Fatalf("Evaluate() returned %d results, want 1", len(results))
	}
	if results[0].Status != StatusPass {
		t.Errorf("Status = %s, want PASS", results[0].Status)
	}
	if results[0].ShortExplain != "All rules passed" {
		t.Errorf("ShortExplain = %q, want %q", results[0].ShortExplain, "All rules passed")
	}
	if results[0].Score != 0 {
		t.Errorf("Score = %v, want 0", results[0].Score)
	}
}

// TestEvaluateDurationBelowThreshold covers the selected short-consult scenario
func TestEvaluateDurationBelowThreshold(t *testing.T) {
	results := Evaluate([]RuleCandidate{
		{
			Code:                  "23",
			Title:                 "Level B",
			Fee:                   41.40,
			TimeThreshold:         minutes(20),
			DurationMinutes:       minutes(15),
			Selected:              true,
			MutuallyExclusiveWith: []string{"36"},
		},
	})

	if results[0].Status != StatusFail {
		t.Errorf("Status = %s, want FAIL", results[0].Status)
	}
	if !strings.Contains(results[0].ShortExplain, "Duration below required threshold of 20 minutes") {
		t.Errorf("ShortExplain = %q, want duration reason", results[0].ShortExplain)
	}
}

// TestEvaluateDurationMeetsThresholdPasses covers the selected long-consult scenario
func TestEvaluateDurationMeetsThresholdPasses(t *testing.T) {
	results := Evaluate([]RuleCandidate{
		{
			Code:                  "36",
			Title:                 "Level C",
			Fee:                   80.10,
			TimeThreshold:         minutes(40),
			DurationMinutes:       minutes(45),
			Selected:              true,
			Flags:                 catalog.Flags{"telehealth": false},
			MutuallyExclusiveWith: []string{"23"},
		},
	})

	if results[0].Status != StatusPass {
		t.Errorf("Status = %s, want PASS", results[0].Status)
	}
	if results[0].ShortExplain != "All rules passed" {
		t.Errorf("ShortExplain = %q, want %q", results[0].ShortExplain, "All rules passed")
	}
}

// TestEvaluateMutualExclusionWarnsUnselected verifies A (unselected, excludes B) warns when B is selected,
// and that B is unaffected because it does not list A.
func TestEvaluateMutualExclusionWarnsUnselected(t *testing.T) {
	results := Evaluate([]RuleCandidate{
		{Code: "A", Title: "Item A", MutuallyExclusiveWith: []string{"B"}},
		{Code: "B", Title: "Item B", Selected: true},
	})

	if results[0].Status != StatusWarn {
		t.Errorf("A Status = %s, want WARN", results[0].Status)
	}
	if !strings.Contains(results[0].ShortExplain, "Mutually exclusive with selected codes: B") {
		t.Errorf("A ShortExplain = %q, want mutual exclusion reason", results[0].ShortExplain)
	}
	if results[1].Status != StatusPass {
		t.Errorf("B Status = %s, want PASS (exclusions are not symmetric)", results[1].Status)
	}
}

// TestEvaluateMutualExclusionFailsSelected verifies selected conflicting candidates fail
func TestEvaluateMutualExclusionFailsSelected(t *testing.T) {
	results := Evaluate([]RuleCandidate{
		{Code: "23", Title: "Level B", Selected: true, MutuallyExclusiveWith: []string{"36", "44"}},
		{Code: "36", Title: "Level C", Selected: true},
		{Code: "44", Title: "Level D", Selected: true},
	})

	if results[0].Status != StatusFail {
		t.Fatalf("Status = %s, want FAIL", results[0].Status)
	}
	want := "Mutually exclusive with selected codes: 36, 44"
	if results[0].ShortExplain != want {
		t.Errorf("ShortExplain = %q, want %q", results[0].ShortExplain, want)
	}
}

// TestEvaluateIgnoresSelfReference verifies a candidate listing itself never conflicts with itself
func TestEvaluateIgnoresSelfReference(t *testing.T) {
	results := Evaluate([]RuleCandidate{
		{Code: "23", Title: "Level B", Selected: true, MutuallyExclusiveWith: []string{"23"}},
	})

	if results[0].Status != StatusPass {
		t.Errorf("Status = %s, want PASS, explain %q", results[0].Status, results[0].ShortExplain)
	}
}

// TestEvaluateCollapsesDuplicateExclusions verifies repeated exclusions are reported once
func TestEvaluateCollapsesDuplicateExclusions(t *testing.T) {
	results := Evaluate([]RuleCandidate{
		{Code: "A", Title: "A", MutuallyExclusiveWith: []string{"B", "B"}},
		{Code: "B", Title: "B", Selected: true},
	})

	want := "Mutually exclusive with selected codes: B"
	if results[0].ShortExplain != want {
		t.Errorf("ShortExplain = %q, want %q", results[0].ShortExplain, want)
	}
}

func TestEvaluateContextMismatch(t *testing.T) {
	tests := []struct {
		name     string
		flags    catalog.Flags
		context  ConsultContext
		selected bool
		want     Status
	}{
		{"telehealth item in person", catalog.Flags{"telehealth": true}, ContextInPerson, true, StatusFail},
		{"telehealth item via telehealth", catalog.Flags{"telehealth": true}, ContextTelehealth, true, StatusPass},
		{"in-person item via telehealth", catalog.Flags{"telehealth": false}, ContextTelehealth, true, StatusFail},
		{"in-person item in person", catalog.Flags{"telehealth": false}, ContextInPerson, true, StatusPass},
		{"flag absent", catalog.Flags{"after_hours": true}, ContextTelehealth, true, StatusPass},
		{"nil flags", nil, ContextTelehealth, true, StatusPass},
		{"context absent", catalog.Flags{"telehealth": true}, "", true, StatusPass},
		{"not selected", catalog.Flags{"telehealth": true}, ContextInPerson, false, StatusPass},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := Evaluate([]RuleCandidate{
				{Code: "91800", Title: "Video consult", Flags: tt.flags, Context: tt.context, Selected: tt.selected},
			})
			if results[0].Status != tt.want {
				t.Errorf("Status = %s, want %s (explain %q)", results[0].Status, tt.want, results[0].ShortExplain)
			}
			if tt.want == StatusFail && results[0].ShortExplain != "Context mismatch: telehealth flag vs selected context" {
				t.Errorf("ShortExplain = %q, want context mismatch reason", results[0].ShortExplain)
			}
		})
	}
}

// TestEvaluateDurationChecksOnlySelected verifies the duration rule skips unselected candidates and missing data
func TestEvaluateDurationChecksOnlySelected(t *testing.T) {
	results := Evaluate([]RuleCandidate{
		{Code: "a", Title: "unselected", TimeThreshold: minutes(20), DurationMinutes: minutes(5)},
		{Code: "b", Title: "no duration", TimeThreshold: minutes(20), Selected: true},
		{Code: "c", Title: "no threshold", DurationMinutes: minutes(5), Selected: true},
		{Code: "d", Title: "equal", TimeThreshold: minutes(20), DurationMinutes: minutes(20), Selected: true},
	})

	for _, r := range results {
		if r.Status != StatusPass {
			t.Errorf("%s: Status = %s, want PASS (explain %q)", r.Title, r.Status, r.ShortExplain)
		}
	}
}

// TestEvaluateJoinsReasons verifies several reasons are joined with "; " in check order
func TestEvaluateJoinsReasons(t *testing.T) {
	results := Evaluate([]RuleCandidate{
		{
			Code:                  "91801",
			Title:                 "Video Level C",
			Selected:              true,
			TimeThreshold:         minutes(7.5),
			DurationMinutes:       minutes(3),
			Flags:                 catalog.Flags{"telehealth": true},
			Context:               ContextInPerson,
			MutuallyExclusiveWith: []string{"36"},
		},
		{Code: "36", Title: "Level C", Selected: true},
	})

	want := "Mutually exclusive with selected codes: 36; " +
		"Duration below required threshold of 7.5 minutes; " +
		"Context mismatch: telehealth flag vs selected context"
	if results[0].ShortExplain != want {
		t.Errorf("ShortExplain = %q, want %q", results[0].ShortExplain, want)
	}
	if results[0].Status != StatusFail {
		t.Errorf("Status = %s, want FAIL", results[0].Status)
	}
}

// TestEvaluatePreservesOrder verifies results mirror input length and order
func TestEvaluatePreservesOrder(t *testing.T) {
	input := []RuleCandidate{
		{Code: "3", Title: "three"},
		{Code: "1", Title: "one"},
		{Code: "2", Title: "two"},
	}
	results := Evaluate(input)

	if len(results) != len(input) {
		t.Fatalf("len(results) = %d, want %d", len(results), len(input))
	}
	for i := range input {
		if results[i].Code != input[i].Code || results[i].Title != input[i].Title {
			t.Errorf("results[%d] = %s/%s, want %s/%s", i, results[i].Code, results[i].Title, input[i].Code, input[i].Title)
		}
	}

	if got := Evaluate(nil); len(got) != 0 {
		t.Errorf("Evaluate(nil) returned %d results, want 0", len(got))
	}
}

// TestEvaluateIsIdempotent verifies identical input yields byte-identical output
func TestEvaluateIsIdempotent(t *testing.T) {
	input := []RuleCandidate{
		{Code: "23", Title: "Level B", Selected: true, TimeThreshold: minutes(20), DurationMinutes: minutes(15), MutuallyExclusiveWith: []string{"36"}},
		{Code: "36", Title: "Level C", MutuallyExclusiveWith: []string{"23"}},
	}

	first, err := json.Marshal(Evaluate(input))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	second, err := json.Marshal(Evaluate(input))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(first) != string(second) {
		t.Errorf("outputs differ:\n%s\n%s", first, second)
	}
	if !strings.Contains(string(first), `"short_explain"`) {
		t.Errorf("JSON output missing short_explain field: %s", first)
	}
}

// TestEvaluateConcurrent verifies Evaluate is safe to call from many goroutines
func TestEvaluateConcurrent(t *testing.T) {
	input := []RuleCandidate{
		{Code: "A", Title: "A", MutuallyExclusiveWith: []string{"B"}},
		{Code: "B", Title: "B", Selected: true},
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results := Evaluate(input)
			if results[0].Status != StatusWarn {
				t.Errorf("Status = %s, want WARN", results[0].Status)
			}
		}()
	}
	wg.Wait()
}

func TestConsultContextValid(t *testing.T) {
	for _, c := range []ConsultContext{"", ContextTelehealth, ContextInPerson} {
		if !c.Valid() {
			t.Errorf("%q should be valid", c)
		}
	}
	if ConsultContext("phone").Valid() {
		t.Error(`"phone" should not be valid`)
	}
}
