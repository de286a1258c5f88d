package screen

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tapedeck/tapedeck/internal/clock"
)

// patternImage renders a deterministic non-flat texture. Offsets shift the
// texture so tests can simulate UI drift between captures.
func patternImage(w, h, offX, offY int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(((x + offX) * 7) + ((y + offY) * 13))})
		}
	}
	return img
}

func solidImage(w, h int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

// fakeGrabber serves crops of a sequence of synthetic screens. Every
// full-screen grab advances to the next frame; region grabs crop the current
// frame. A nil frame simulates a capture failure.
type fakeGrabber struct {
	mu     sync.Mutex
	frames []image.Image
	idx    int
}

func (g *fakeGrabber) Capture(_ context.Context, r Region) (image.Image, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.idx >= len(g.frames) {
		g.idx = len(g.frames) - 1
	}
	frame := g.frames[g.idx]
	if r.IsFull() {
		if g.idx < len(g.frames)-1 {
			g.idx++
		}
		if frame == nil {
			return nil, errors.New("simulated capture failure")
		}
		return frame, nil
	}
	if frame == nil {
		return nil, errors.New("simulated capture failure")
	}
	return cropFrame(frame, r), nil
}

func cropFrame(frame image.Image, r Region) image.Image {
	b := frame.Bounds()
	x1 := min(b.Max.X, r.X+r.W)
	y1 := min(b.Max.Y, r.Y+r.H)
	out := image.NewGray(image.Rect(0, 0, x1-r.X, y1-r.Y))
	for y := r.Y; y < y1; y++ {
		for x := r.X; x < x1; x++ {
			out.Set(x-r.X, y-r.Y, frame.At(x, y))
		}
	}
	return out
}

func newTestService(t *testing.T, frames ...image.Image) (*Service, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake()
	svc, err := NewService(&fakeGrabber{frames: frames}, clk, t.TempDir())
	require.NoError(t, err)
	return svc, clk
}

// TestCaptureRegion_WritesArtifact verifies a region capture produces a PNG
// artifact with geometry, timestamp and perceptual hash filled in.
func TestCaptureRegion_WritesArtifact(t *testing.T) {
	svc, clk := newTestService(t, patternImage(200, 200, 0, 0))

	ref, err := svc.CaptureRegion(context.Background(), 60, 40, 24, 24)
	require.NoError(t, err)

	assert.Equal(t, 60, ref.X)
	assert.Equal(t, 40, ref.Y)
	assert.Equal(t, 24, ref.W)
	assert.Equal(t, 24, ref.H)
	assert.Equal(t, clk.Now(), ref.CapturedAt)
	assert.NotEmpty(t, ref.Hash)

	img, err := loadPNG(ref.Path)
	require.NoError(t, err)
	assert.Equal(t, 24, img.Bounds().Dx())
}

// TestCaptureAround_CentersAndClamps verifies click-context capture centers
// on the click point and clamps at the screen edge.
func TestCaptureAround_CentersAndClamps(t *testing.T) {
	svc, _ := newTestService(t, patternImage(200, 200, 0, 0))

	ref, err := svc.CaptureAround(context.Background(), 100, 100, 50)
	require.NoError(t, err)
	assert.Equal(t, 75, ref.X)
	assert.Equal(t, 75, ref.Y)

	edge, err := svc.CaptureAround(context.Background(), 5, 5, 50)
	require.NoError(t, err)
	assert.Equal(t, 0, edge.X)
	assert.Equal(t, 0, edge.Y)
}

// TestCapture_FailureIsCaptureError verifies a failed grab surfaces as a
// recoverable CaptureError.
func TestCapture_FailureIsCaptureError(t *testing.T) {
	svc, _ := newTestService(t, nil)

	_, err := svc.CaptureFull(context.Background())
	require.Error(t, err)
	assert.True(t, IsCaptureError(err))
}

// TestPerceptualHash_ToleratesIdenticalFrames verifies identical frames hash
// to distance zero and visually different frames are far apart.
func TestPerceptualHash_ToleratesIdenticalFrames(t *testing.T) {
	a1, err := PerceptualHash(patternImage(64, 64, 0, 0))
	require.NoError(t, err)
	a2, err := PerceptualHash(patternImage(64, 64, 0, 0))
	require.NoError(t, err)
	b, err := PerceptualHash(solidImage(64, 64, 200))
	require.NoError(t, err)

	assert.Equal(t, 0, a1.Distance(a2))
	assert.Greater(t, a1.Distance(b), 8)
	assert.Len(t, a1.String(), 16)
}
