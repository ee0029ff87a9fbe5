package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors. Only ErrInvalidQuery and ErrCancelled escape the engine;
// the rest are absorbed into degraded output.
var (
	ErrInvalidQuery = errors.New("invalid query")
	ErrCancelled    = errors.New("diagnosis cancelled")

	ErrEmbedding  = errors.New("embedding failed")
	ErrRetrieval  = errors.New("retrieval failed")
	ErrGeneration = errors.New("generation failed")
	ErrValidation = errors.New("generated report rejected")

	ErrEmptySymptom   = errors.New("symptom text is empty")
	ErrInvalidVIN     = errors.New("invalid VIN")
	ErrYearOutOfRange = errors.New("year out of range")
	ErrInvalidAudio   = errors.New("audio confidence out of range")
	ErrInvalidScope   = errors.New("invalid vehicle scope")
	ErrInvalidDoc     = errors.New("invalid evidence document")
)

// ValidationError wraps a sentinel with context.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}

// InvalidQueryError is returned to callers for malformed queries. It matches
// both ErrInvalidQuery and the underlying field error.
type InvalidQueryError struct {
	Cause *ValidationError
}

func (e *InvalidQueryError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidQuery, e.Cause)
}

func (e *InvalidQueryError) Unwrap() []error { return []error{ErrInvalidQuery, e.Cause} }

// StageError attributes an internal failure to a pipeline stage.
type StageError struct {
	Stage string
	Kind  error // one of the stage sentinels
	Err   error
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Stage, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
