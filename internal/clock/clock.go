// Package clock abstracts time for the recorder and playback engine.
//
// All waiting in the engine (timing reconstruction, retry backoff, stability
// polling) goes through a Clock so tests can drive execution with a fake
// instead of sleeping.
package clock

import (
	"context"
	"time"
)

// Clock provides the current time and interruptible sleeping.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Sleep blocks for d or until ctx is cancelled, whichever comes first.
	// Returns ctx.Err() when interrupted, nil when the full duration elapsed.
	Sleep(ctx context.Context, d time.Duration) error
}

// System is the wall-clock implementation used in production.
type System struct{}

// Now returns time.Now().
func (System) Now() time.Time { return time.Now() }

// Sleep waits on a timer and the context simultaneously.
func (System) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
