package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInputValidation matches every *InputValidationError via errors.Is.
	ErrInputValidation = errors.New("input validation error")

	// ErrEmptyResultSet means a run produced neither evaluation results nor
	// exclusion records, i.e. the input was empty or malformed upstream.
	ErrEmptyResultSet = errors.New("empty result set: no evaluation results and no exclusion records")

	// ErrInvalidConfig wraps configuration validation failures.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// InputValidationError identifies the record that made a run abort.
type InputValidationError struct {
	Row      int
	EntityID string
	Period   string
	Reason   string
}

func (e *InputValidationError) Error() string {
	var parts []string
	if e.Row > 0 {
		parts = append(parts, fmt.Sprintf("row %d", e.Row))
	}
	if e.EntityID != "" {
		parts = append(parts, fmt.Sprintf("entity %s", e.EntityID))
	}
	if e.Period != "" {
		parts = append(parts, fmt.Sprintf("period %s", e.Period))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("InputValidationError: %s", e.Reason)
	}
	return fmt.Sprintf("InputValidationError (%s): %s", strings.Join(parts, ", "), e.Reason)
}

// Is makes errors.Is(err, ErrInputValidation) true for any InputValidationError.
func (e *InputValidationError) Is(target error) bool {
	return target == ErrInputValidation
}
