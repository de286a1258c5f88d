package clock

import (
	"context"
	"sync"
	"time"
)

// Fake is a deterministic Clock for tests.
//
// Sleep never blocks: it advances the fake time by the requested duration and
// returns immediately. Tests can inspect Elapsed() to assert how much time a
// code path consumed, or register an OnSleep hook to trigger events (e.g.
// entering the abort region) at a specific wait.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	start   time.Time
	onSleep func(d time.Duration)
}

// NewFake creates a fake clock starting at a fixed reference instant.
func NewFake() *Fake {
	t := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return &Fake{now: t, start: t}
}

// Now returns the current fake time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Sleep advances the fake time by d and returns immediately.
// Context cancellation is still honored so abort paths behave as in production.
func (f *Fake) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	if d > 0 {
		f.now = f.now.Add(d)
	}
	hook := f.onSleep
	f.mu.Unlock()
	if hook != nil {
		hook(d)
	}
	return ctx.Err()
}

// Advance moves the fake time forward without a Sleep call.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// Elapsed returns how far the fake time has moved since creation.
func (f *Fake) Elapsed() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now.Sub(f.start)
}

// OnSleep registers a hook invoked after every Sleep with the slept duration.
func (f *Fake) OnSleep(hook func(d time.Duration)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onSleep = hook
}
