package schedule

import (
	"errors"
	"fmt"
)

// ErrNoSalaryProfile is returned when a salary-day source has no profile to resolve against.
var ErrNoSalaryProfile = errors.New("no salary profile for salary-day rule")

// RuleError describes a malformed rule field.
type RuleError struct {
	Field  string
	Reason string
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func ruleErr(field, format string, args ...any) error {
	return &RuleError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
