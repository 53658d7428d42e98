package service

import (
	"errors"
	"fmt"

	"github.com/DreamDayCrew/FinanceTracker/internal/schedule"
)

// ErrInvalidTransition is returned when an occurrence, cycle or loan is not in a state
// that allows the requested operation.
var ErrInvalidTransition = errors.New("invalid status transition")

// ValidationError reports malformed input. It is never retried.
type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// asValidation lifts rule errors from the schedule package into ValidationError.
func asValidation(err error) error {
	var re *schedule.RuleError
	if errors.As(err, &re) {
		return &ValidationError{Field: re.Field, Reason: re.Reason}
	}
	return err
}
