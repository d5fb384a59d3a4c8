package contracts

import (
	"errors"
	"fmt"
)

// ErrorKind classifies stage failures for run summaries and API responses.
type ErrorKind string

const (
	ErrSourceUnavailable   ErrorKind = "SourceUnavailable"
	ErrEmptyDataset        ErrorKind = "EmptyDataset"
	ErrMissingColumn       ErrorKind = "MissingColumn"
	ErrTypeMismatch        ErrorKind = "TypeMismatch"
	ErrDomainViolation     ErrorKind = "DomainViolation"
	ErrSchemaDrift         ErrorKind = "SchemaDrift"
	ErrTrainingFailure     ErrorKind = "TrainingFailure"
	ErrPushFailure         ErrorKind = "PushFailure"
	ErrNoProductionModel   ErrorKind = "NoProductionModel"
	ErrRegistryUnavailable ErrorKind = "RegistryUnavailable"
)

// StageError wraps a stage-local failure with its stage and classification.
// A stage error halts the enclosing run only; artifacts written by earlier
// stages stay untouched, and the production reference is never modified.
type StageError struct {
	Stage Stage
	Kind  ErrorKind
	Err   error
}

// NewStageError creates a classified stage error.
func NewStageError(stage Stage, kind ErrorKind, err error) *StageError {
	return &StageError{Stage: stage, Kind: kind, Err: err}
}

// Error implements the error interface.
func (e *StageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Stage.ShortName(), e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Stage.ShortName(), e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error {
	return e.Err
}

// KindOf extracts the error kind from an error chain.
// Returns an empty kind for nil or unclassified errors.
func KindOf(err error) ErrorKind {
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// StageOf extracts the failing stage from an error chain.
func StageOf(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}
