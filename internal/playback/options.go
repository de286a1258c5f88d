package playback

import (
	"time"

	"github.com/tapedeck/tapedeck/internal/action"
	"github.com/tapedeck/tapedeck/internal/screen"
)

// Playback defaults. Recording settings seed speed, verification, and
// retry budget; PlayOptions override both.
const (
	DefaultMatchThreshold    = 0.85
	DefaultBackoffBase       = time.Second
	DefaultBackoffMax        = 30 * time.Second
	DefaultMaxActionDelay    = 5 * time.Second
	DefaultAbortPollInterval = 100 * time.Millisecond
)

type playOptions struct {
	speed          float64
	maxRetries     int
	backoffBase    time.Duration
	backoffMax     time.Duration
	verify         bool
	matchThreshold float64
	maxActionDelay time.Duration
	abortRegion    *screen.Region
	abortPoll      time.Duration
	stability      screen.StabilityParams
}

// PlayOption adjusts one playback setting.
type PlayOption func(*playOptions)

// WithSpeed scales timing reconstruction: 2.0 halves every
// inter-action wait and explicit wait duration.
func WithSpeed(multiplier float64) PlayOption {
	return func(o *playOptions) {
		if multiplier > 0 {
			o.speed = multiplier
		}
	}
}

// WithMaxRetries bounds verification attempts per click action.
func WithMaxRetries(n int) PlayOption {
	return func(o *playOptions) { o.maxRetries = n }
}

// WithBackoff sets the delay between verification attempts: base on
// the first retry, doubling each attempt, capped at max.
func WithBackoff(base, max time.Duration) PlayOption {
	return func(o *playOptions) {
		if base > 0 {
			o.backoffBase = base
		}
		if max > 0 {
			o.backoffMax = max
		}
	}
}

// WithVerify toggles pre-click visual verification. When off, clicks
// execute blind at their recorded coordinates.
func WithVerify(enabled bool) PlayOption {
	return func(o *playOptions) { o.verify = enabled }
}

// WithMatchThreshold sets the minimum similarity score for a click
// target to count as verified.
func WithMatchThreshold(t float64) PlayOption {
	return func(o *playOptions) {
		if t > 0 {
			o.matchThreshold = t
		}
	}
}

// WithAbortRegion arms the abort watcher: moving the cursor into r
// aborts the run between actions.
func WithAbortRegion(r screen.Region) PlayOption {
	return func(o *playOptions) { o.abortRegion = &r }
}

// WithAbortPollInterval sets the cursor sampling interval.
func WithAbortPollInterval(d time.Duration) PlayOption {
	return func(o *playOptions) {
		if d > 0 {
			o.abortPoll = d
		}
	}
}

// WithStability overrides the navigation settle-detection parameters.
func WithStability(p screen.StabilityParams) PlayOption {
	return func(o *playOptions) { o.stability = p }
}

// WithMaxActionDelay caps a reconstructed inter-action wait, so a
// recording made with a long idle gap does not stall playback.
func WithMaxActionDelay(d time.Duration) PlayOption {
	return func(o *playOptions) {
		if d > 0 {
			o.maxActionDelay = d
		}
	}
}

func newPlayOptions(rec *action.Recording, opts []PlayOption) playOptions {
	o := playOptions{
		speed:          rec.SpeedMultiplier,
		maxRetries:     rec.MaxRetries,
		backoffBase:    DefaultBackoffBase,
		backoffMax:     DefaultBackoffMax,
		verify:         rec.VerifyScreenshots,
		matchThreshold: DefaultMatchThreshold,
		maxActionDelay: DefaultMaxActionDelay,
		abortPoll:      DefaultAbortPollInterval,
		stability:      screen.DefaultStabilityParams(),
	}
	if o.speed <= 0 {
		o.speed = 1
	}
	if o.maxRetries <= 0 {
		o.maxRetries = 3
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// backoff returns the wait before verification attempt n+1, growing
// exponentially from base and capped at max.
func (o *playOptions) backoff(attempt int) time.Duration {
	d := o.backoffBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= o.backoffMax {
			return o.backoffMax
		}
	}
	if d > o.backoffMax {
		return o.backoffMax
	}
	return d
}
