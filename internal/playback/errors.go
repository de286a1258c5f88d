package playback

import (
	"errors"
	"fmt"
)

// RunError represents a condition that ended a playback run early.
//
// Fatal conditions include:
//   - Verification exhausted: a click target never matched within the
//     retry budget
//   - Resolve failure: a credential reference could not be resolved
//   - Injection failure: OS-level input delivery failed
//
// RunError carries the action it occurred on for diagnostics. It never
// carries secret material.
type RunError struct {
	// Code identifies the error category.
	Code RunErrorCode

	// Message is a human-readable description.
	Message string

	// ActionID identifies the action that failed, when applicable.
	ActionID string

	// Err is the underlying cause, if any.
	Err error
}

// RunErrorCode categorizes run errors.
type RunErrorCode string

const (
	// ErrCodeInvalidRecording indicates the recording failed model
	// validation before any action executed.
	ErrCodeInvalidRecording RunErrorCode = "INVALID_RECORDING"

	// ErrCodeVerificationFailed indicates a click target did not match
	// within the retry budget.
	ErrCodeVerificationFailed RunErrorCode = "VERIFICATION_FAILED"

	// ErrCodeResolveFailed indicates a credential reference could not
	// be resolved.
	ErrCodeResolveFailed RunErrorCode = "RESOLVE_FAILED"

	// ErrCodeInjectionFailed indicates OS-level input delivery failed.
	ErrCodeInjectionFailed RunErrorCode = "INJECTION_FAILED"
)

// Error implements the error interface.
func (e *RunError) Error() string {
	if e.ActionID != "" {
		return fmt.Sprintf("%s: %s (action=%s)", e.Code, e.Message, e.ActionID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *RunError) Unwrap() error { return e.Err }

// IsVerificationError reports whether err is a verification failure.
// Uses errors.As to handle wrapped errors.
func IsVerificationError(err error) bool {
	var re *RunError
	if errors.As(err, &re) {
		return re.Code == ErrCodeVerificationFailed
	}
	return false
}
