package inject

import (
	"context"
	"fmt"
	"image"

	"github.com/kbinani/screenshot"

	scr "github.com/tapedeck/tapedeck/internal/screen"
)

// DisplayGrabber captures the primary display. It implements the
// screen service's Grabber capability.
type DisplayGrabber struct{}

// NewDisplayGrabber returns the production screen grabber.
func NewDisplayGrabber() *DisplayGrabber { return &DisplayGrabber{} }

// Capture grabs the requested region of the primary display, clamped
// to the visible bounds. A zero region means the full display.
func (g *DisplayGrabber) Capture(ctx context.Context, r scr.Region) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if screenshot.NumActiveDisplays() == 0 {
		return nil, fmt.Errorf("no active display")
	}

	bounds := screenshot.GetDisplayBounds(0)
	rect := bounds
	if !r.IsFull() {
		rect = image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H).Intersect(bounds)
		if rect.Empty() {
			return nil, fmt.Errorf("region %+v outside display bounds %v", r, bounds)
		}
	}

	img, err := screenshot.CaptureRect(rect)
	if err != nil {
		return nil, fmt.Errorf("capture %v: %w", rect, err)
	}
	return img, nil
}
