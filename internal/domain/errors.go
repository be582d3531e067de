// Package domain defines the core types and errors of staffcast: observed
// hours, predictions, model versions, accuracy, calendar exceptions,
// schedules and staffing alerts. It has no infrastructure dependencies.
package domain

import (
	"errors"
	"fmt"
)

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors carry no infrastructure dependency. Every one of them is
// an expected, recoverable condition reported back to the caller.

var (
	// Training errors
	ErrInsufficientData   = errors.New("insufficient historical data for training")
	ErrTrainingInProgress = errors.New("another training job is already running")

	// Prediction errors
	ErrModelNotTrained    = errors.New("no active model version, train a model first")
	ErrArtifactCorrupted  = errors.New("model artifact integrity check failed")
	ErrInvalidRange       = errors.New("invalid date range")
	ErrInvalidFeatureSlot = errors.New("hour or day of week out of range")

	// Lookup errors
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")

	// Accuracy errors
	ErrNoData = errors.New("no accuracy data available for this period")

	// Alert errors
	ErrAlertResolved = errors.New("alert is already resolved")
)

// InsufficientDataError reports how many records a training window held.
// It matches ErrInsufficientData under errors.Is.
type InsufficientDataError struct {
	Found    int
	Required int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%v: found %d records, need at least %d", ErrInsufficientData, e.Found, e.Required)
}

func (e *InsufficientDataError) Unwrap() error {
	return ErrInsufficientData
}

// RangeError describes why a date range was rejected.
// It matches ErrInvalidRange under errors.Is.
type RangeError struct {
	Reason string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%v: %s", ErrInvalidRange, e.Reason)
}

func (e *RangeError) Unwrap() error {
	return ErrInvalidRange
}
