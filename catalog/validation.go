package catalog

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

const (
	maxCodeLength     = 32
	maxFlags          = 50
	maxExclusions     = 200
	maxConditions     = 20
	maxIdentifierSize = 100
)

var (
	codePattern       = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)
	identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
)

// ValidateEntry checks a catalog entry before it is stored.
// Returns an error wrapping ErrInvalidEntry if validation fails, nil if the entry is valid.
func ValidateEntry(e Entry) error {
	if err := validateCode(e.Code); err != nil {
		return fmt.Errorf("%w: code %q: %v", ErrInvalidEntry, e.Code, err)
	}

	if strings.TrimSpace(e.Title) == "" {
		return fmt.Errorf("%w: entry %s has an empty title", ErrInvalidEntry, e.Code)
	}

	if math.IsNaN(e.Fee) || math.IsInf(e.Fee, 0) || e.Fee < 0 {
		return fmt.Errorf("%w: entry %s has invalid fee %v (must be a non-negative amount)", ErrInvalidEntry, e.Code, e.Fee)
	}

	if e.TimeThreshold != nil && (math.IsNaN(*e.TimeThreshold) || *e.TimeThreshold <= 0) {
		return fmt.Errorf("%w: entry %s has invalid time threshold %v", ErrInvalidEntry, e.Code, *e.TimeThreshold)
	}

	if len(e.Flags) > maxFlags {
		return fmt.Errorf("%w: entry %s has %d flags, maximum allowed is %d", ErrInvalidEntry, e.Code, len(e.Flags), maxFlags)
	}
	for name := range e.Flags {
		if err := validateIdentifier(name); err != nil {
			return fmt.Errorf("%w: invalid flag name %q in entry %s: %v", ErrInvalidEntry, name, e.Code, err)
		}
	}

	if len(e.MutuallyExclusiveWith) > maxExclusions {
		return fmt.Errorf("%w: entry %s lists %d exclusions, maximum allowed is %d", ErrInvalidEntry, e.Code, len(e.MutuallyExclusiveWith), maxExclusions)
	}
	for _, other := range e.MutuallyExclusiveWith {
		if other == "" {
			return fmt.Errorf("%w: entry %s has an empty code in mutuallyExclusiveWith", ErrInvalidEntry, e.Code)
		}
		if other == e.Code {
			return fmt.Errorf("%w: entry %s lists itself as mutually exclusive", ErrInvalidEntry, e.Code)
		}
	}

	if len(e.Conditions) > maxConditions {
		return fmt.Errorf("%w: entry %s has %d conditions, maximum allowed is %d", ErrInvalidEntry, e.Code, len(e.Conditions), maxConditions)
	}
	for i, c := range e.Conditions {
		if strings.TrimSpace(c.Expression) == "" {
			return fmt.Errorf("%w: entry %s condition %d has an empty expression", ErrInvalidEntry, e.Code, i)
		}
	}

	return nil
}

func validateCode(code string) error {
	if code == "" {
		return fmt.Errorf("code cannot be empty")
	}
	if len(code) > maxCodeLength {
		return fmt.Errorf("code length %d exceeds maximum of %d characters", len(code), maxCodeLength)
	}
	if !codePattern.MatchString(code) {
		return fmt.Errorf("must match pattern %s", codePattern.String())
	}
	return nil
}

// validateIdentifier validates a flag name: ^[a-zA-Z_][a-zA-Z0-9_]*$, 1-100 characters.
func validateIdentifier(name string) error {
	if len(name) == 0 {
		return fmt.Errorf("identifier cannot be empty")
	}
	if len(name) > maxIdentifierSize {
		return fmt.Errorf("identifier length %d exceeds maximum of %d characters", len(name), maxIdentifierSize)
	}
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("must match pattern ^[a-zA-Z_][a-zA-Z0-9_]*$ (start with letter or underscore, followed by letters, digits, or underscores)")
	}
	return nil
}
