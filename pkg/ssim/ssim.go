// Package ssim computes the mean structural similarity index of two 8-bit grayscale images.
//
// The parameters match the defaults of scikit-image's structural_similarity for uint8 input:
// a 7x7 uniform window, K1 = 0.01, K2 = 0.03, a data range of 255, and the sample
// covariance (N/(N-1)). The mean is taken over every window that lies fully inside
// the image.
//
// Window sums are accumulated as integers, so two images with identical pixels score
// exactly 1.0. Callers that look for exact duplicates depend on this.
package ssim

import (
	"errors"
	"image"
)

// WindowSize is the width and height of the sliding window
const WindowSize = 7

const (
	k1        = 0.01
	k2        = 0.03
	dataRange = 255.0
	c1        = (k1 * dataRange) * (k1 * dataRange)
	c2        = (k2 * dataRange) * (k2 * dataRange)
	np        = float64(WindowSize * WindowSize)
	covNorm   = np / (np - 1)
)

var ErrShapeMismatch = errors.New("Images have different dimensions")
var ErrTooSmall = errors.New("Image is smaller than the 7x7 SSIM window")

// Compare returns the mean SSIM of a and b, in the range [-1, 1].
// The images may be sub-images (eg from SubImage). Only their bounds matter, not their origin.
func Compare(a, b *image.Gray) (float64, error) {
	ra := a.Bounds()
	rb := b.Bounds()
	if ra.Dx() != rb.Dx() || ra.Dy() != rb.Dy() {
		return 0, ErrShapeMismatch
	}
	width := ra.Dx()
	height := ra.Dy()
	if width < WindowSize || height < WindowSize {
		return 0, ErrTooSmall
	}

	// Column sums over the current band of WindowSize rows
	col := newBand(width)
	rowA := func(y int) []uint8 {
		off := a.PixOffset(ra.Min.X, ra.Min.Y+y)
		return a.Pix[off : off+width]
	}
	rowB := func(y int) []uint8 {
		off := b.PixOffset(rb.Min.X, rb.Min.Y+y)
		return b.Pix[off : off+width]
	}
	for y := 0; y < WindowSize; y++ {
		col.add(rowA(y), rowB(y), 1)
	}

	total := 0.0
	count := 0
	for top := 0; ; top++ {
		var s sums
		for x := 0; x < WindowSize; x++ {
			s.addColumn(&col, x, 1)
		}
		for left := 0; ; left++ {
			total += s.ssim()
			count++
			if left+WindowSize == width {
				break
			}
			s.addColumn(&col, left, -1)
			s.addColumn(&col, left+WindowSize, 1)
		}
		if top+WindowSize == height {
			break
		}
		col.add(rowA(top), rowB(top), -1)
		col.add(rowA(top+WindowSize), rowB(top+WindowSize), 1)
	}

	return total / float64(count), nil
}

// Per-column running sums of x, y, x², y², xy
type band struct {
	x, y, xx, yy, xy []int64
}

func newBand(width int) band {
	return band{
		x:  make([]int64, width),
		y:  make([]int64, width),
		xx: make([]int64, width),
		yy: make([]int64, width),
		xy: make([]int64, width),
	}
}

// sign is +1 to add a row, or -1 to remove it
func (c *band) add(ra, rb []uint8, sign int64) {
	for i := range ra {
		x := int64(ra[i])
		y := int64(rb[i])
		c.x[i] += sign * x
		c.y[i] += sign * y
		c.xx[i] += sign * x * x
		c.yy[i] += sign * y * y
		c.xy[i] += sign * x * y
	}
}

// Sums over one window
type sums struct {
	x, y, xx, yy, xy int64
}

func (s *sums) addColumn(c *band, i int, sign int64) {
	s.x += sign * c.x[i]
	s.y += sign * c.y[i]
	s.xx += sign * c.xx[i]
	s.yy += sign * c.yy[i]
	s.xy += sign * c.xy[i]
}

// The order of operations here keeps the numerator and denominator bit-identical
// when x == y.
func (s *sums) ssim() float64 {
	ux := float64(s.x) / np
	uy := float64(s.y) / np
	uxx := float64(s.xx) / np
	uyy := float64(s.yy) / np
	uxy := float64(s.xy) / np
	vx := covNorm * (uxx - ux*ux)
	vy := covNorm * (uyy - uy*uy)
	vxy := covNorm * (uxy - ux*uy)

	a1 := 2*(ux*uy) + c1
	a2 := 2*vxy + c2
	b1 := ux*ux + uy*uy + c1
	b2 := vx + vy + c2
	return (a1 * a2) / (b1 * b2)
}
