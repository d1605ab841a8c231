package pipeline

import (
	"errors"
	"fmt"
)

// Failure causes of an extraction. Each is matched with errors.Is.
var (
	ErrRemoteUnavailable = errors.New("model unavailable")
	ErrTimeout           = errors.New("model call timed out")
	ErrMalformedOutput   = errors.New("no parseable JSON object in model output")
	ErrSchemaViolation   = errors.New("model output violates schema")
)

// Batch and service level conditions.
var (
	ErrEmptyResult        = errors.New("batch produced no successful extractions")
	ErrNoItems            = errors.New("source returned no items")
	ErrServiceUnavailable = errors.New("extraction service unavailable")
)

// SchemaViolation names the field that failed validation and why.
type SchemaViolation struct {
	Field  string
	Reason string
}

func (e *SchemaViolation) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("schema violation: %s", e.Reason)
	}
	return fmt.Sprintf("schema violation: field %q: %s", e.Field, e.Reason)
}

// Is reports SchemaViolation as ErrSchemaViolation.
func (e *SchemaViolation) Is(target error) bool {
	return target == ErrSchemaViolation
}

// ExtractionFailed is returned once every attempt of an extraction has failed.
// Cause holds the failure of the last attempt.
type ExtractionFailed struct {
	Attempts int
	Cause    error
}

func (e *ExtractionFailed) Error() string {
	return fmt.Sprintf("extraction failed after %d attempt(s): %v", e.Attempts, e.Cause)
}

func (e *ExtractionFailed) Unwrap() error {
	return e.Cause
}

// CauseName returns a stable label for the failure class of err, used in logs and metrics.
func CauseName(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrRemoteUnavailable):
		return "remote_unavailable"
	case errors.Is(err, ErrMalformedOutput):
		return "malformed_output"
	case errors.Is(err, ErrSchemaViolation):
		return "schema_violation"
	default:
		return "other"
	}
}
