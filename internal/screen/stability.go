package screen

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// StabilityParams tunes the navigation-settling heuristic.
type StabilityParams struct {
	// PollInterval is the delay between full-screen hash samples.
	PollInterval time.Duration

	// StableCount is how many consecutive samples must agree before the
	// screen counts as settled.
	StableCount int

	// Timeout bounds the whole wait.
	Timeout time.Duration

	// MaxHashDistance is the perceptual-hash bit distance under which two
	// samples count as identical. Tolerates cursor blink and anti-aliasing.
	MaxHashDistance int
}

// DefaultStabilityParams mirror the recorded-at settings of typical page
// loads: sample five times a second, settled after three quiet samples.
func DefaultStabilityParams() StabilityParams {
	return StabilityParams{
		PollInterval:    200 * time.Millisecond,
		StableCount:     3,
		Timeout:         30 * time.Second,
		MaxHashDistance: 2,
	}
}

// WaitForStability polls the full-screen perceptual hash until StableCount
// consecutive samples agree, then returns the elapsed time as the measured
// load duration. Returns ErrStabilityTimeout when the screen kept changing
// past the timeout.
//
// There is no OS signal for "page loaded"; visual stillness is the proxy.
// The wait is interruptible through ctx (abort, shutdown).
func (s *Service) WaitForStability(ctx context.Context, p StabilityParams) (time.Duration, error) {
	if p.StableCount < 1 {
		return 0, fmt.Errorf("stable count must be >= 1, got %d", p.StableCount)
	}

	start := s.clk.Now()
	deadline := start.Add(p.Timeout)

	var prev Hash
	streak := 0

	for {
		img, err := s.grab(ctx, Region{})
		if err != nil {
			// A single failed sample is not evidence of instability.
			slog.Debug("stability sample capture failed", "error", err)
		} else {
			h, herr := PerceptualHash(img)
			switch {
			case herr != nil:
				slog.Debug("stability sample hash failed", "error", herr)
			case !prev.IsZero() && h.Distance(prev) <= p.MaxHashDistance:
				streak++
				if streak >= p.StableCount {
					return s.clk.Now().Sub(start), nil
				}
			default:
				streak = 1
			}
			if herr == nil {
				prev = h
			}
		}

		if !s.clk.Now().Add(p.PollInterval).Before(deadline) {
			return s.clk.Now().Sub(start), ErrStabilityTimeout
		}
		if err := s.clk.Sleep(ctx, p.PollInterval); err != nil {
			return s.clk.Now().Sub(start), err
		}
	}
}
