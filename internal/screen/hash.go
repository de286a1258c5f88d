package screen

import (
	"fmt"
	"image"

	"github.com/corona10/goimagehash"
)

// Hash is a perceptual fingerprint of an image. Unlike a cryptographic hash
// it tolerates minor rendering noise (anti-aliasing, cursor position):
// near-identical frames produce hashes within a small bit distance.
type Hash struct {
	h *goimagehash.ImageHash
}

// PerceptualHash fingerprints an image with a 64-bit difference hash.
func PerceptualHash(img image.Image) (Hash, error) {
	h, err := goimagehash.DifferenceHash(img)
	if err != nil {
		return Hash{}, fmt.Errorf("perceptual hash: %w", err)
	}
	return Hash{h: h}, nil
}

// Distance returns the Hamming distance to another hash in [0, 64].
// Zero means visually identical under the difference-hash fingerprint.
func (h Hash) Distance(other Hash) int {
	if h.h == nil || other.h == nil {
		return 64
	}
	d, err := h.h.Distance(other.h)
	if err != nil {
		// Distance only fails on mismatched hash kinds, which cannot
		// happen for two PerceptualHash results.
		return 64
	}
	return d
}

// String renders the hash as 16 hex digits for storage in ScreenshotRef.
func (h Hash) String() string {
	if h.h == nil {
		return ""
	}
	return fmt.Sprintf("%016x", h.h.GetHash())
}

// IsZero reports whether the hash is unset.
func (h Hash) IsZero() bool { return h.h == nil }
