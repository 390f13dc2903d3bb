package sim

import (
	"errors"
	"fmt"
)

// SimError represents an error detected by the simulation core.
//
// Categories:
//   - Scheduling: event scheduled in the past, non-positive delta or
//     scale, backward time jump
//   - Modality not found: event targets an unregistered channel
//   - Validation: a payload failed its own Validate (surfaced as a
//     Failed event, never a crash)
//   - Undo failure: a reversal raised; the remaining undo batch aborts
//   - Engine state: operation invalid for the current lifecycle state
//     (e.g. Start while already running)
//
// "Nothing to undo/redo" is deliberately NOT an error: it is a
// zero-count result.
type SimError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// EventID identifies the affected event, when there is one.
	EventID string

	// Modality identifies the affected channel, when there is one.
	Modality string

	// Err is the underlying cause, when wrapping.
	Err error
}

// ErrorCode categorizes simulation errors.
type ErrorCode string

const (
	// ErrCodeScheduling indicates an invalid time argument.
	ErrCodeScheduling ErrorCode = "SCHEDULING"

	// ErrCodeModalityNotFound indicates an unregistered channel.
	ErrCodeModalityNotFound ErrorCode = "MODALITY_NOT_FOUND"

	// ErrCodeValidation indicates a payload failed validation.
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodeUndoFailed indicates a reversal raised mid-batch.
	ErrCodeUndoFailed ErrorCode = "UNDO_FAILED"

	// ErrCodeEngineState indicates a lifecycle misuse.
	ErrCodeEngineState ErrorCode = "ENGINE_STATE"
)

// Error implements the error interface.
func (e *SimError) Error() string {
	switch {
	case e.EventID != "" && e.Modality != "":
		return fmt.Sprintf("%s: %s (event=%s, modality=%s)", e.Code, e.Message, e.EventID, e.Modality)
	case e.EventID != "":
		return fmt.Sprintf("%s: %s (event=%s)", e.Code, e.Message, e.EventID)
	case e.Modality != "":
		return fmt.Sprintf("%s: %s (modality=%s)", e.Code, e.Message, e.Modality)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// Unwrap exposes the underlying cause to errors.Is/As.
func (e *SimError) Unwrap() error {
	return e.Err
}

// IsSchedulingError reports whether err is a scheduling error.
// Uses errors.As to handle wrapped errors.
func IsSchedulingError(err error) bool {
	return hasCode(err, ErrCodeScheduling)
}

// IsModalityNotFound reports whether err is a missing-channel error.
func IsModalityNotFound(err error) bool {
	return hasCode(err, ErrCodeModalityNotFound)
}

// IsValidationError reports whether err is a payload validation error.
func IsValidationError(err error) bool {
	return hasCode(err, ErrCodeValidation)
}

// IsUndoFailure reports whether err is an aborted reversal.
func IsUndoFailure(err error) bool {
	return hasCode(err, ErrCodeUndoFailed)
}

func hasCode(err error, code ErrorCode) bool {
	var se *SimError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// NewSchedulingError creates a SimError for invalid time arguments.
func NewSchedulingError(format string, args ...any) *SimError {
	return &SimError{
		Code:    ErrCodeScheduling,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewModalityNotFound creates a SimError for an unregistered channel.
func NewModalityNotFound(modality string) *SimError {
	return &SimError{
		Code:     ErrCodeModalityNotFound,
		Message:  "no state registered for modality",
		Modality: modality,
	}
}

// NewValidationError creates a SimError wrapping a payload's own
// validation failure.
func NewValidationError(eventID, modality string, cause error) *SimError {
	return &SimError{
		Code:     ErrCodeValidation,
		Message:  cause.Error(),
		EventID:  eventID,
		Modality: modality,
		Err:      cause,
	}
}

// NewUndoFailure creates a SimError for a reversal that raised.
func NewUndoFailure(eventID, modality string, cause error) *SimError {
	return &SimError{
		Code:     ErrCodeUndoFailed,
		Message:  cause.Error(),
		EventID:  eventID,
		Modality: modality,
		Err:      cause,
	}
}

// NewEngineStateError creates a SimError for lifecycle misuse.
func NewEngineStateError(format string, args ...any) *SimError {
	return &SimError{
		Code:    ErrCodeEngineState,
		Message: fmt.Sprintf(format, args...),
	}
}
