package rules

import (
	"strconv"
	"strings"

	"github.com/liamcoop/mbsrules/catalog"
)

const (
	allRulesPassed = "All rules passed"
	reasonSep      = "; "
	codeSep        = ", "
)

// Evaluate computes a status and explanation for every candidate.
//
// The set of selected codes is taken from this batch only. Results keep the
// input order and the score is always 0. Evaluate does not validate its input:
// a missing optional field skips the check that depends on it.
func Evaluate(candidates []RuleCandidate) []EvaluationResult {
	selected := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		if c.Selected {
			selected[c.Code] = struct{}{}
		}
	}

	results := make([]EvaluationResult, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, evaluateCandidate(c, selected))
	}
	return results
}

func evaluateCandidate(c RuleCandidate, selected map[string]struct{}) EvaluationResult {
	var reasons []string

	if conflicts := intersectSelected(c.Code, c.MutuallyExclusiveWith, selected); len(conflicts) > 0 {
		reasons = append(reasons, "Mutually exclusive with selected codes: "+strings.Join(conflicts, codeSep))
	}

	if c.Selected && c.TimeThreshold != nil && c.DurationMinutes != nil {
		if *c.DurationMinutes < *c.TimeThreshold {
			reasons = append(reasons, "Duration below required threshold of "+formatMinutes(*c.TimeThreshold)+" minutes")
		}
	}

	if c.Selected && c.Context != "" {
		if telehealth, ok := c.Flags.Lookup(catalog.FlagTelehealth); ok {
			if (telehealth && c.Context != ContextTelehealth) || (!telehealth && c.Context == ContextTelehealth) {
				reasons = append(reasons, "Context mismatch: telehealth flag vs selected context")
			}
		}
	}

	result := EvaluationResult{
		Code:         c.Code,
		Title:        c.Title,
		Score:        0,
		ShortExplain: allRulesPassed,
		Status:       StatusPass,
	}
	if len(reasons) > 0 {
		result.ShortExplain = strings.Join(reasons, reasonSep)
		if c.Selected {
			result.Status = StatusFail
		} else {
			result.Status = StatusWarn
		}
	}
	return result
}

// intersectSelected returns the codes of list that are in selected, in list
// order, without duplicates and without self.
func intersectSelected(self string, list []string, selected map[string]struct{}) []string {
	var out []string
	seen := make(map[string]struct{}, len(list))
	for _, other := range list {
		if other == self {
			continue
		}
		if _, ok := selected[other]; !ok {
			continue
		}
		if _, dup := seen[other]; dup {
			continue
		}
		seen[other] = struct{}{}
		out = append(out, other)
	}
	return out
}

// formatMinutes renders 20 as "20" and 7.5 as "7.5".
func formatMinutes(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
