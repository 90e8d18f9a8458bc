package services

import (
	"fmt"

	"kpitracker/models"

	"github.com/pkg/errors"
)

// ErrNotFoundOrUnauthorized is returned both for missing KPIs and for KPIs
// the principal does not own, so callers cannot probe for existence.
var ErrNotFoundOrUnauthorized = errors.New("KPI not found or not authorized")

// ErrEvidenceNotFound is returned when a visible KPI has no such evidence.
var ErrEvidenceNotFound = errors.New("evidence not found")

// PeriodNotElapsedError rejects an update made within the current reporting
// period of the KPI's measurement frequency.
type PeriodNotElapsedError struct {
	Frequency models.Frequency
}

func (e *PeriodNotElapsedError) Error() string {
	return fmt.Sprintf("This KPI can only be updated %s. Please wait until the next %s period.",
		e.Frequency.Period(), e.Frequency.Period())
}

// FieldError names the offending input field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(msg string, flds ...FieldError) error {
	return &ValidationError{Err: errors.New(msg), Fields: flds}
}

func (e *ValidationError) Error() string {
	if e.Err == nil {
		return "validation failed"
	}
	return e.Err.Error()
}

// PersistenceError wraps a failed store operation. It is surfaced as is;
// nothing retries it except version conflicts inside SubmitUpdate.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Cause() error  { return e.Err }
func (e *PersistenceError) Unwrap() error { return e.Err }

func persistenceError(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}
