package rules

import (
	"context"
	"strings"

	"github.com/liamcoop/mbsrules/catalog"
)

// Validator checks a whole selection against the catalog's mutual exclusions.
type Validator struct {
	catalog catalog.Provider
}

// NewValidator creates a validator that reads exclusions from provider.
// A nil provider behaves as an empty catalog.
func NewValidator(provider catalog.Provider) *Validator {
	return &Validator{catalog: provider}
}

// ValidateSelection reports every selected code whose catalog entry lists
// another selected code as mutually exclusive.
//
// Each entry's exclusion list is authoritative only for that entry: if A lists
// B but B does not list A, only A is reported. Codes missing from the catalog
// are skipped. The consult context is accepted but does not affect conflicts.
func (v *Validator) ValidateSelection(ctx context.Context, selectedCodes []string, _ SelectionContext) SelectionValidationResult {
	result := SelectionValidationResult{
		OK:        true,
		Conflicts: []Conflict{},
		Warnings:  []string{},
	}

	codes := dedupeCodes(selectedCodes)
	if len(codes) == 0 {
		return result
	}

	snapshot := catalog.EmptySnapshot()
	if v != nil && v.catalog != nil {
		snapshot = v.catalog.Snapshot(ctx)
	}

	selected := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		selected[c] = struct{}{}
	}

	for _, code := range codes {
		entry, ok := snapshot.Lookup(code)
		if !ok {
			continue
		}
		overlap := intersectSelected(code, entry.MutuallyExclusiveWith, selected)
		if len(overlap) == 0 {
			continue
		}
		result.Conflicts = append(result.Conflicts, Conflict{Code: code, With: overlap})
		result.Warnings = append(result.Warnings, code+" ↔ "+strings.Join(overlap, codeSep))
	}

	result.Blocked = len(result.Conflicts) > 0
	return result
}

// dedupeCodes drops blanks and repeats, keeping first-seen order.
func dedupeCodes(codes []string) []string {
	out := make([]string, 0, len(codes))
	seen := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
