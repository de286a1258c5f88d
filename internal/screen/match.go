package screen

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/tapedeck/tapedeck/internal/action"
)

// MatchResult is the outcome of template-matching a recorded context image
// against the live screen.
type MatchResult struct {
	// Score is the best normalized correlation found, in [0, 1].
	Score float64

	// Found reports whether Score met the threshold passed to Match.
	Found bool

	// X, Y are the screen coordinates of the matched template center.
	// Only meaningful when Found is true.
	X, Y int
}

// Match searches the current screen for the context image stored in ref.
//
// The search window is the recorded rectangle expanded by one template
// dimension on each side: verification tolerates UI drift, it does not hunt
// across the whole screen. The returned result carries the best score found
// and the screen location of the best match; the caller compares Score
// against its threshold and, on success, acts at the matched location rather
// than the recorded one.
func (s *Service) Match(ctx context.Context, ref *action.ScreenshotRef, threshold float64) (MatchResult, error) {
	tplImg, err := loadPNG(ref.Path)
	if err != nil {
		return MatchResult{}, fmt.Errorf("load context image: %w", err)
	}
	tpl := toGray(tplImg)
	tw, th := tpl.Bounds().Dx(), tpl.Bounds().Dy()
	if tw == 0 || th == 0 {
		return MatchResult{}, fmt.Errorf("context image %s is empty", ref.Path)
	}

	// Window around the recorded location, clamped so the grabbed image's
	// origin stays known for coordinate math.
	wx := max(0, ref.X-tw)
	wy := max(0, ref.Y-th)
	winImg, err := s.grab(ctx, Region{X: wx, Y: wy, W: tw * 3, H: th * 3})
	if err != nil {
		return MatchResult{}, &CaptureError{Op: "region", Region: Region{X: wx, Y: wy, W: tw * 3, H: th * 3}, Err: err}
	}
	win := toGray(winImg)

	ox, oy, score := bestMatch(win, tpl)
	if score < 0 {
		return MatchResult{Score: 0}, nil
	}
	return MatchResult{
		Score: score,
		Found: score >= threshold,
		X:     wx + ox + tw/2,
		Y:     wy + oy + th/2,
	}, nil
}

// bestMatch slides tpl over win and returns the offset with the highest
// normalized correlation. A coarse pass strides the window, then a fine pass
// refines around the coarse winner; exhaustive search at every offset is too
// slow in pure Go for no accuracy gain. Returns score -1 when the template
// does not fit in the window.
func bestMatch(win, tpl *image.Gray) (x, y int, score float64) {
	ww, wh := win.Bounds().Dx(), win.Bounds().Dy()
	tw, th := tpl.Bounds().Dx(), tpl.Bounds().Dy()
	if ww < tw || wh < th {
		return 0, 0, -1
	}

	step := max(1, min(tw, th)/16)

	bestX, bestY := 0, 0
	best := -1.0
	for oy := 0; oy <= wh-th; oy += step {
		for ox := 0; ox <= ww-tw; ox += step {
			if s := ncc(win, tpl, ox, oy); s > best {
				best, bestX, bestY = s, ox, oy
			}
		}
	}

	if step > 1 {
		x0, y0 := max(0, bestX-step), max(0, bestY-step)
		x1, y1 := min(ww-tw, bestX+step), min(wh-th, bestY+step)
		for oy := y0; oy <= y1; oy++ {
			for ox := x0; ox <= x1; ox++ {
				if s := ncc(win, tpl, ox, oy); s > best {
					best, bestX, bestY = s, ox, oy
				}
			}
		}
	}

	return bestX, bestY, best
}

// ncc computes the zero-mean normalized cross-correlation of tpl against win
// at offset (ox, oy), mapped from [-1, 1] to [0, 1]. Two flat patches
// correlate perfectly when their means agree and not at all otherwise.
func ncc(win, tpl *image.Gray, ox, oy int) float64 {
	tw, th := tpl.Bounds().Dx(), tpl.Bounds().Dy()
	n := float64(tw * th)

	var sumW, sumT float64
	for y := 0; y < th; y++ {
		wRow := win.Pix[(oy+y)*win.Stride+ox:]
		tRow := tpl.Pix[y*tpl.Stride:]
		for x := 0; x < tw; x++ {
			sumW += float64(wRow[x])
			sumT += float64(tRow[x])
		}
	}
	meanW, meanT := sumW/n, sumT/n

	var num, varW, varT float64
	for y := 0; y < th; y++ {
		wRow := win.Pix[(oy+y)*win.Stride+ox:]
		tRow := tpl.Pix[y*tpl.Stride:]
		for x := 0; x < tw; x++ {
			dw := float64(wRow[x]) - meanW
			dt := float64(tRow[x]) - meanT
			num += dw * dt
			varW += dw * dw
			varT += dt * dt
		}
	}

	if varW == 0 || varT == 0 {
		// Flat patch: correlation is undefined, fall back to mean agreement.
		if varW == 0 && varT == 0 {
			diff := meanW - meanT
			if diff < 0 {
				diff = -diff
			}
			return 1 - diff/255
		}
		return 0
	}

	corr := num / math.Sqrt(varW*varT)
	return (corr + 1) / 2
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.Set(x-b.Min.X, y-b.Min.Y, color.GrayModel.Convert(img.At(x, y)))
		}
	}
	return out
}
