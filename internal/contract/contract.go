// Package contract defines the versioned wire shapes exchanged with
// external consumers and persisted in evaluation snapshots. Producers and
// consumers must agree on the version tag or reject the payload.
//
// These shapes are pure data with validation, no behavior. The snapshot
// artifact {event, plan, run, links, evaluations} is the unit of replay
// and audit.
package contract

import (
	"fmt"
	"strings"
)

// Version is the literal tag every contract payload carries.
const Version = "1.0.0"

// Minimum identifier length for trace/run/plan/eval ids.
const minIDLength = 8

// FieldError represents a contract violation with field path and message.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func requireVersion(field, got string) *FieldError {
	if got != Version {
		return &FieldError{Field: field, Message: fmt.Sprintf("version %q does not match contract version %q", got, Version)}
	}
	return nil
}

func requireID(field, value string) *FieldError {
	if len(value) < minIDLength {
		return &FieldError{Field: field, Message: fmt.Sprintf("must be at least %d characters", minIDLength)}
	}
	return nil
}

func requireNonEmpty(field, value string) *FieldError {
	if strings.TrimSpace(value) == "" {
		return &FieldError{Field: field, Message: "is required and must be non-empty"}
	}
	return nil
}

func appendErr(errs []FieldError, e *FieldError) []FieldError {
	if e != nil {
		errs = append(errs, *e)
	}
	return errs
}
