package catalog

import "time"

// Known flag names. Only these are checked by the rule evaluator; any other
// key is carried through untouched.
const (
	FlagTelehealth = "telehealth"
	FlagAfterHours = "after_hours"
)

// Flags maps a flag name to its value. An absent key is not the same as false.
type Flags map[string]bool

// Lookup returns the flag value and whether the flag is defined at all.
func (f Flags) Lookup(name string) (value bool, ok bool) {
	if f == nil {
		return false, false
	}
	value, ok = f[name]
	return value, ok
}

// Condition is a CEL expression that must evaluate to true for the item to be
// claimable in a given consult. Message is shown to the clinician when it does not.
type Condition struct {
	Expression string `json:"expression"`
	Message    string `json:"message,omitempty"`
}

// Reference points at supporting material for an item (MBS notes, explanatory text).
type Reference struct {
	Title string `json:"title"`
	URL   string `json:"url,omitempty"`
}

// Entry is the normalized, static metadata for a single billing code.
type Entry struct {
	Code                  string      `json:"code"`
	Title                 string      `json:"title"`
	Fee                   float64     `json:"fee"`
	TimeThreshold         *float64    `json:"timeThreshold,omitempty"`
	Flags                 Flags       `json:"flags"`
	MutuallyExclusiveWith []string    `json:"mutuallyExclusiveWith"`
	Conditions            []Condition `json:"conditions,omitempty"`
	References            []Reference `json:"references,omitempty"`
	CreatedAt             time.Time   `json:"createdAt"`
	UpdatedAt             time.Time   `json:"updatedAt"`
}

// Clone returns a deep copy of the entry.
func (e Entry) Clone() Entry {
	out := e
	if e.TimeThreshold != nil {
		t := *e.TimeThreshold
		out.TimeThreshold = &t
	}
	if e.Flags != nil {
		out.Flags = make(Flags, len(e.Flags))
		for k, v := range e.Flags {
			out.Flags[k] = v
		}
	}
	if e.MutuallyExclusiveWith != nil {
		out.MutuallyExclusiveWith = append([]string(nil), e.MutuallyExclusiveWith...)
	}
	if e.Conditions != nil {
		out.Conditions = append([]Condition(nil), e.Conditions...)
	}
	if e.References != nil {
		out.References = append([]Reference(nil), e.References...)
	}
	return out
}
