package screen

import (
	"errors"
	"fmt"
)

// ErrStabilityTimeout is returned by WaitForStability when the screen never
// settled within the configured timeout. Callers treat this as a warning,
// not a failure: slow or animated pages are legitimate.
var ErrStabilityTimeout = errors.New("screen did not stabilize before timeout")

// CaptureError reports a failed screenshot. A single capture failing is a
// recoverable condition: the recorder degrades the action and playback
// retries or proceeds, neither aborts outright.
type CaptureError struct {
	Op     string // "full", "region"
	Region Region
	Err    error
}

func (e *CaptureError) Error() string {
	if e.Op == "region" {
		return fmt.Sprintf("capture region %dx%d at (%d,%d): %v", e.Region.W, e.Region.H, e.Region.X, e.Region.Y, e.Err)
	}
	return fmt.Sprintf("capture %s screen: %v", e.Op, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// IsCaptureError reports whether err is a capture failure.
// Uses errors.As to handle wrapped errors.
func IsCaptureError(err error) bool {
	var ce *CaptureError
	return errors.As(err, &ce)
}
