package rules

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/liamcoop/mbsrules/catalog"
)

// conditionCostLimit stops runaway expressions from a badly written catalog.
const conditionCostLimit = 1000000

// UnmetCondition is a condition that evaluated to false.
type UnmetCondition struct {
	Expression string `json:"expression"`
	Message    string `json:"message"`
}

// ConditionError is a condition that could not be compiled or evaluated.
type ConditionError struct {
	Expression string `json:"expression"`
	Error      string `json:"error"`
}

// ItemConditions is the condition outcome for one selected code.
type ItemConditions struct {
	Code    string           `json:"code"`
	Passed  bool             `json:"passed"`
	Checked int              `json:"checked"`
	Unmet   []UnmetCondition `json:"unmet"`
	Errors  []ConditionError `json:"errors"`
}

// ConditionReport covers every selected code that has catalog conditions.
type ConditionReport struct {
	OK    bool             `json:"ok"`
	Items []ItemConditions `json:"items"`
}

// ConditionChecker evaluates the CEL eligibility conditions attached to
// catalog entries against the consult context of a selection.
//
// Expressions see three variables:
//
//	item     the catalog entry: code, title, fee, flags, timeThreshold (when set)
//	consult  note, mode, hoursBucket, location, providerType, lastClaimedItems,
//	         referralPresent and durationMinutes (when known)
//	selected the deduplicated selected codes
//
// Compiled programs are cached by expression and shared across calls.
type ConditionChecker struct {
	env      *cel.Env
	catalog  catalog.Provider
	programs map[string]cel.Program // expression -> compiled program
	mu       sync.RWMutex
}

// NewConditionChecker creates a checker that reads conditions from provider.
func NewConditionChecker(provider catalog.Provider) (*ConditionChecker, error) {
	env, err := cel.NewEnv(
		cel.Variable("item", cel.DynType),
		cel.Variable("consult", cel.DynType),
		cel.Variable("selected", cel.ListType(cel.StringType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &ConditionChecker{
		env:      env,
		catalog:  provider,
		programs: make(map[string]cel.Program),
	}, nil
}

// Compile compiles an expression, returning the cached program when the same
// expression was compiled before.
func (cc *ConditionChecker) Compile(expression string) (cel.Program, error) {
	cc.mu.RLock()
	prog, ok := cc.programs[expression]
	cc.mu.RUnlock()
	if ok {
		return prog, nil
	}

	ast, issues := cc.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}

	prog, err := cc.env.Program(ast, cel.CostLimit(conditionCostLimit))
	if err != nil {
		return nil, fmt.Errorf("program creation error: %w", err)
	}

	cc.mu.Lock()
	cc.programs[expression] = prog
	cc.mu.Unlock()

	return prog, nil
}

// Check evaluates the conditions of every selected code known to the catalog.
//
// A condition that evaluates to false is reported as unmet and fails the item.
// A condition that cannot be compiled or evaluated, or yields a non-boolean,
// is reported as an error and does not fail the item.
func (cc *ConditionChecker) Check(ctx context.Context, selectedCodes []string, sc SelectionContext) ConditionReport {
	report := ConditionReport{OK: true, Items: []ItemConditions{}}

	codes := dedupeCodes(selectedCodes)
	if len(codes) == 0 {
		return report
	}

	snapshot := catalog.EmptySnapshot()
	if cc.catalog != nil {
		snapshot = cc.catalog.Snapshot(ctx)
	}

	consult := consultFacts(sc)
	for _, code := range codes {
		entry, ok := snapshot.Lookup(code)
		if !ok || len(entry.Conditions) == 0 {
			continue
		}

		vars := map[string]any{
			"item":     itemFacts(entry),
			"consult":  consult,
			"selected": codes,
		}

		item := ItemConditions{
			Code:    code,
			Passed:  true,
			Checked: len(entry.Conditions),
			Unmet:   []UnmetCondition{},
			Errors:  []ConditionError{},
		}
		for _, cond := range entry.Conditions {
			met, err := cc.evaluate(ctx, cond.Expression, vars)
			if err != nil {
				item.Errors = append(item.Errors, ConditionError{Expression: cond.Expression, Error: err.Error()})
				continue
			}
			if !met {
				msg := cond.Message
				if msg == "" {
					msg = cond.Expression
				}
				item.Unmet = append(item.Unmet, UnmetCondition{Expression: cond.Expression, Message: msg})
				item.Passed = false
			}
		}
		report.Items = append(report.Items, item)
	}

	return report
}

func (cc *ConditionChecker) evaluate(ctx context.Context, expression string, vars map[string]any) (bool, error) {
	prog, err := cc.Compile(expression)
	if err != nil {
		return false, err
	}

	out, _, err := prog.ContextEval(ctx, vars)
	if err != nil {
		return false, fmt.Errorf("evaluation error: %w", err)
	}

	met, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("condition did not evaluate to a boolean (got %v)", out.Type())
	}
	return met, nil
}

func itemFacts(e catalog.Entry) map[string]any {
	flags := make(map[string]any, len(e.Flags))
	for k, v := range e.Flags {
		flags[k] = v
	}
	facts := map[string]any{
		"code":  e.Code,
		"title": e.Title,
		"fee":   e.Fee,
		"flags": flags,
	}
	if e.TimeThreshold != nil {
		facts["timeThreshold"] = *e.TimeThreshold
	}
	return facts
}

func consultFacts(sc SelectionContext) map[string]any {
	last := sc.LastClaimedItems
	if last == nil {
		last = []string{}
	}
	facts := map[string]any{
		"note":             sc.Note,
		"mode":             sc.Mode,
		"hoursBucket":      sc.HoursBucket,
		"location":         sc.Location,
		"providerType":     sc.ProviderType,
		"lastClaimedItems": last,
	}
	if sc.ReferralPresent != nil {
		facts["referralPresent"] = *sc.ReferralPresent
	}
	if minutes, ok := sc.DurationMinutes(); ok {
		facts["durationMinutes"] = minutes
	}
	return facts
}
