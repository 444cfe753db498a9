package rules

import (
	"time"

	"github.com/liamcoop/mbsrules/catalog"
)

// Status is the compliance outcome for a single candidate
type Status string

const (
	StatusPass Status = "PASS"
	StatusWarn Status = "WARN"
	StatusFail Status = "FAIL"
)

// ConsultContext describes how the consult was conducted. The empty value means unknown.
type ConsultContext string

const (
	ContextTelehealth ConsultContext = "telehealth"
	ContextInPerson   ConsultContext = "in_person"
)

// Valid reports whether c is empty or one of the known contexts.
func (c ConsultContext) Valid() bool {
	switch c {
	case "", ContextTelehealth, ContextInPerson:
		return true
	}
	return false
}

// RuleCandidate is one billing code offered to the clinician, together with
// its rule metadata and the clinician's current choice.
type RuleCandidate struct {
	Code                  string         `json:"code"`
	Title                 string         `json:"title"`
	Fee                   float64        `json:"fee"`
	TimeThreshold         *float64       `json:"timeThreshold,omitempty"`
	Flags                 catalog.Flags  `json:"flags,omitempty"`
	MutuallyExclusiveWith []string       `json:"mutuallyExclusiveWith,omitempty"`
	Selected              bool           `json:"selected"`
	Context               ConsultContext `json:"context,omitempty"`
	DurationMinutes       *float64       `json:"durationMinutes,omitempty"`
}

// EvaluationResult contains the outcome of evaluating one candidate
type EvaluationResult struct {
	Code         string  `json:"code"`
	Title        string  `json:"title"`
	Score        float64 `json:"score"`
	ShortExplain string  `json:"short_explain"`
	Status       Status  `json:"status"`
}

// SelectionContext carries the consult details sent alongside a selection.
// Conflict detection ignores it; eligibility conditions read it.
type SelectionContext struct {
	Note             string     `json:"note,omitempty"`
	Mode             string     `json:"mode,omitempty"`
	HoursBucket      string     `json:"hoursBucket,omitempty"`
	Location         string     `json:"location,omitempty"`
	ProviderType     string     `json:"providerType,omitempty"`
	ReferralPresent  *bool      `json:"referralPresent,omitempty"`
	ConsultStart     *time.Time `json:"consultStart,omitempty"`
	ConsultEnd       *time.Time `json:"consultEnd,omitempty"`
	LastClaimedItems []string   `json:"lastClaimedItems,omitempty"`
}

// DurationMinutes returns the consult length when both ends are known and ordered.
func (sc SelectionContext) DurationMinutes() (float64, bool) {
	if sc.ConsultStart == nil || sc.ConsultEnd == nil {
		return 0, false
	}
	d := sc.ConsultEnd.Sub(*sc.ConsultStart)
	if d < 0 {
		return 0, false
	}
	return d.Minutes(), true
}

// Conflict records that Code cannot be claimed together with the codes in With.
type Conflict struct {
	Code string   `json:"code"`
	With []string `json:"with"`
}

// SelectionValidationResult is the verdict for a whole selection.
// OK reports that the check ran; Blocked reports that it found a conflict.
type SelectionValidationResult struct {
	OK        bool       `json:"ok"`
	Blocked   bool       `json:"blocked"`
	Conflicts []Conflict `json:"conflicts"`
	Warnings  []string   `json:"warnings"`
}
