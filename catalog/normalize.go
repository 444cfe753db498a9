package catalog

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Issue describes a correction or rejection made while normalizing raw data.
type Issue struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	if i.Code == "" {
		return i.Message
	}
	return i.Code + ": " + i.Message
}

// Normalize cleans raw catalog entries so they satisfy the catalog invariants:
// non-empty unique codes, non-negative fees, positive thresholds, and exclusion
// lists without blanks, duplicates, or self references. Flags with invalid
// names are removed, and entries that would still fail ValidateEntry are
// dropped, so every returned entry can be stored. Input order is kept.
func Normalize(entries []Entry) ([]Entry, []Issue) {
	out := make([]Entry, 0, len(entries))
	var issues []Issue
	seen := make(map[string]struct{}, len(entries))

	for i, raw := range entries {
		e := raw.Clone()
		e.Code = strings.TrimSpace(e.Code)
		if e.Code == "" {
			issues = append(issues, Issue{Message: fmt.Sprintf("entry %d has no code, dropped", i)})
			continue
		}
		if _, dup := seen[e.Code]; dup {
			issues = append(issues, Issue{Code: e.Code, Message: "duplicate code, later entry dropped"})
			continue
		}

		e.Title = strings.TrimSpace(e.Title)
		if e.Title == "" {
			e.Title = e.Code
			issues = append(issues, Issue{Code: e.Code, Message: "missing title, using code"})
		}

		if math.IsNaN(e.Fee) || math.IsInf(e.Fee, 0) || e.Fee < 0 {
			issues = append(issues, Issue{Code: e.Code, Message: fmt.Sprintf("invalid fee %v, set to 0", e.Fee)})
			e.Fee = 0
		}

		if e.TimeThreshold != nil && (math.IsNaN(*e.TimeThreshold) || *e.TimeThreshold <= 0) {
			issues = append(issues, Issue{Code: e.Code, Message: fmt.Sprintf("invalid time threshold %v, cleared", *e.TimeThreshold)})
			e.TimeThreshold = nil
		}

		if e.Flags == nil {
			e.Flags = Flags{}
		}
		for _, name := range sortedFlagNames(e.Flags) {
			if err := validateIdentifier(name); err != nil {
				issues = append(issues, Issue{Code: e.Code, Message: fmt.Sprintf("invalid flag name %q removed", name)})
				delete(e.Flags, name)
			}
		}

		exclusions, selfRef := normalizeExclusions(e.Code, e.MutuallyExclusiveWith)
		if selfRef {
			issues = append(issues, Issue{Code: e.Code, Message: "self reference removed from mutuallyExclusiveWith"})
		}
		e.MutuallyExclusiveWith = exclusions

		conditions := e.Conditions[:0:0]
		for _, c := range e.Conditions {
			c.Expression = strings.TrimSpace(c.Expression)
			if c.Expression == "" {
				issues = append(issues, Issue{Code: e.Code, Message: "empty condition dropped"})
				continue
			}
			c.Message = strings.TrimSpace(c.Message)
			conditions = append(conditions, c)
		}
		e.Conditions = conditions

		if err := ValidateEntry(e); err != nil {
			issues = append(issues, Issue{Code: e.Code, Message: fmt.Sprintf("%v, dropped", err)})
			continue
		}

		seen[e.Code] = struct{}{}
		out = append(out, e)
	}

	return out, issues
}

// normalizeExclusions trims, dedupes, and strips self references while
// preserving first-seen order.
func normalizeExclusions(code string, list []string) ([]string, bool) {
	out := make([]string, 0, len(list))
	seen := make(map[string]struct{}, len(list))
	selfRef := false
	for _, other := range list {
		other = strings.TrimSpace(other)
		if other == "" {
			continue
		}
		if other == code {
			selfRef = true
			continue
		}
		if _, dup := seen[other]; dup {
			continue
		}
		seen[other] = struct{}{}
		out = append(out, other)
	}
	return out, selfRef
}

func sortedFlagNames(flags Flags) []string {
	names := make([]string, 0, len(flags))
	for name := range flags {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
