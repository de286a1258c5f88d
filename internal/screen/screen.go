package screen

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/tapedeck/tapedeck/internal/action"
	"github.com/tapedeck/tapedeck/internal/clock"
)

// Region is a rectangle in screen coordinates. The zero Region means the
// full primary screen.
type Region struct {
	X, Y, W, H int
}

// IsFull reports whether the region denotes the whole screen.
func (r Region) IsFull() bool { return r.W == 0 && r.H == 0 }

// Contains reports whether the point lies inside the region, edges
// inclusive.
func (r Region) Contains(x, y int) bool {
	return x >= r.X && x <= r.X+r.W && y >= r.Y && y <= r.Y+r.H
}

// Grabber is the screen-capture capability. Implementations must clamp the
// requested region to the visible screen.
type Grabber interface {
	Capture(ctx context.Context, r Region) (image.Image, error)
}

// DefaultCaptureTimeout bounds a single grab. Capture failure is a
// recoverable error, so a stuck backend must not stall a session.
const DefaultCaptureTimeout = 3 * time.Second

// Service captures screen images into an artifact directory and performs
// hashing and matching against them.
type Service struct {
	grabber Grabber
	clk     clock.Clock
	dir     string
	timeout time.Duration
	seq     atomic.Int64
}

// Option configures a Service.
type Option func(*Service)

// WithCaptureTimeout overrides the per-grab timeout.
func WithCaptureTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

// NewService creates a screen service writing artifacts under dir.
func NewService(grabber Grabber, clk clock.Clock, dir string, opts ...Option) (*Service, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	s := &Service{
		grabber: grabber,
		clk:     clk,
		dir:     dir,
		timeout: DefaultCaptureTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir returns the artifact directory.
func (s *Service) Dir() string { return s.dir }

// CaptureFull grabs the whole screen and stores it as a PNG artifact.
func (s *Service) CaptureFull(ctx context.Context) (*action.ScreenshotRef, error) {
	return s.capture(ctx, Region{}, "full")
}

// CaptureRegion grabs the rectangle with top-left (x, y) and stores it.
func (s *Service) CaptureRegion(ctx context.Context, x, y, w, h int) (*action.ScreenshotRef, error) {
	return s.capture(ctx, Region{X: x, Y: y, W: w, H: h}, "region")
}

// CaptureAround grabs a size×size region centered on (cx, cy), clamped to
// non-negative coordinates. This is the click-context capture shape.
func (s *Service) CaptureAround(ctx context.Context, cx, cy, size int) (*action.ScreenshotRef, error) {
	x := max(0, cx-size/2)
	y := max(0, cy-size/2)
	return s.CaptureRegion(ctx, x, y, size, size)
}

func (s *Service) capture(ctx context.Context, r Region, op string) (*action.ScreenshotRef, error) {
	img, err := s.grab(ctx, r)
	if err != nil {
		return nil, &CaptureError{Op: op, Region: r, Err: err}
	}

	name := fmt.Sprintf("%s_%06d.png", op, s.seq.Add(1))
	path := filepath.Join(s.dir, name)
	if err := writePNG(path, img); err != nil {
		return nil, &CaptureError{Op: op, Region: r, Err: err}
	}

	ref := &action.ScreenshotRef{
		Path:       path,
		X:          r.X,
		Y:          r.Y,
		W:          imgWidth(img, r),
		H:          imgHeight(img, r),
		CapturedAt: s.clk.Now().UTC(),
	}
	if h, err := PerceptualHash(img); err == nil {
		ref.Hash = h.String()
	} else {
		slog.Debug("hashing captured image failed", "path", path, "error", err)
	}
	return ref, nil
}

// grab runs the backend capture under the service timeout. The backend call
// itself cannot be interrupted, so a timed-out grab finishes in the
// background and its result is dropped.
func (s *Service) grab(ctx context.Context, r Region) (image.Image, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type result struct {
		img image.Image
		err error
	}
	ch := make(chan result, 1)
	go func() {
		img, err := s.grabber.Capture(ctx, r)
		ch <- result{img, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.img, res.err
	}
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// loadPNG reads a stored artifact back for matching.
func loadPNG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

func imgWidth(img image.Image, r Region) int {
	if r.IsFull() {
		return img.Bounds().Dx()
	}
	return r.W
}

func imgHeight(img image.Image, r Region) int {
	if r.IsFull() {
		return img.Bounds().Dy()
	}
	return r.H
}
