package ssim

import (
	"image"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func noise(seed int64, w, h int) *image.Gray {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = uint8(rng.Intn(256))
	}
	return img
}

func clone(src *image.Gray) *image.Gray {
	dst := image.NewGray(src.Rect)
	copy(dst.Pix, src.Pix)
	return dst
}

func TestIdenticalIsExactlyOne(t *testing.T) {
	for _, size := range [][2]int{{7, 7}, {8, 31}, {64, 48}, {123, 77}} {
		a := noise(int64(size[0]), size[0], size[1])
		score, err := Compare(a, clone(a))
		require.NoError(t, err)
		require.Equal(t, 1.0, score, "%v", size)
	}

	// Flat images have zero variance, which is the case most likely to lose precision
	flat := image.NewGray(image.Rect(0, 0, 20, 20))
	for i := range flat.Pix {
		flat.Pix[i] = 255
	}
	score, err := Compare(flat, clone(flat))
	require.NoError(t, err)
	require.Equal(t, 1.0, score)
}

func TestDifferent(t *testing.T) {
	a := noise(1, 40, 30)
	b := clone(a)
	b.Pix[500] ^= 0xff
	score, err := Compare(a, b)
	require.NoError(t, err)
	require.Less(t, score, 1.0)
	require.Greater(t, score, 0.8)

	// Symmetric
	score2, err := Compare(b, a)
	require.NoError(t, err)
	require.Equal(t, score, score2)

	c := noise(2, 40, 30)
	score, err = Compare(a, c)
	require.NoError(t, err)
	require.Less(t, score, 0.2)
}

func TestSubImage(t *testing.T) {
	a := noise(3, 50, 50)
	sub := a.SubImage(image.Rect(10, 5, 30, 25)).(*image.Gray)
	flat := image.NewGray(image.Rect(0, 0, 20, 20))
	for y := 0; y < 20; y++ {
		copy(flat.Pix[y*flat.Stride:y*flat.Stride+20], a.Pix[a.PixOffset(10, 5+y):])
	}
	score, err := Compare(sub, flat)
	require.NoError(t, err)
	require.Equal(t, 1.0, score)
}

func TestErrors(t *testing.T) {
	_, err := Compare(noise(1, 10, 10), noise(1, 10, 11))
	require.ErrorIs(t, err, ErrShapeMismatch)
	_, err = Compare(noise(1, 6, 10), noise(1, 6, 10))
	require.ErrorIs(t, err, ErrTooSmall)
}
