package framex

import (
	"fmt"
	"image"

	"github.com/bmharper/cimg/v2"
	"github.com/fogleman/gg"
	"golang.org/x/image/draw"
)

// FitSize returns the largest size with the aspect ratio of (width, height) that fits inside (maxWidth, maxHeight)
func FitSize(width, height, maxWidth, maxHeight int) (int, int) {
	if width <= 0 || height <= 0 {
		return 0, 0
	}
	w := maxWidth
	h := height * maxWidth / width
	if h > maxHeight {
		h = maxHeight
		w = width * maxHeight / height
	}
	return max(w, 1), max(h, 1)
}

// ResizeToFit scales the frame so that it fits inside (maxWidth, maxHeight)
func ResizeToFit(img *cimg.Image, maxWidth, maxHeight int) *cimg.Image {
	w, h := FitSize(img.Width, img.Height, maxWidth, maxHeight)
	if w == img.Width && h == img.Height {
		return img
	}
	return cimg.ResizeNew(img, w, h, nil)
}

// ToRGBA converts an RGB frame into an opaque image.RGBA
func ToRGBA(img *cimg.Image) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, img.Width, img.Height))
	for y := 0; y < img.Height; y++ {
		srow := img.Pixels[y*img.Stride:]
		drow := dst.Pix[y*dst.Stride:]
		for x := 0; x < img.Width; x++ {
			drow[x*4] = srow[x*3]
			drow[x*4+1] = srow[x*3+1]
			drow[x*4+2] = srow[x*3+2]
			drow[x*4+3] = 255
		}
	}
	return dst
}

// Thumbnail returns a JPEG of the frame, scaled to fit inside (maxWidth, maxHeight)
func Thumbnail(img *cimg.Image, maxWidth, maxHeight int) ([]byte, error) {
	small := ResizeToFit(img, maxWidth, maxHeight)
	return cimg.Compress(small, cimg.MakeCompressParams(cimg.Sampling420, 85, 0))
}

// Crop copies the region out of an in-memory frame
func Crop(img *cimg.Image, r Rect) (*cimg.Image, error) {
	if err := r.Check(img.Width, img.Height); err != nil {
		return nil, err
	}
	dst := cimg.NewImage(r.Width(), r.Height(), cimg.PixelFormatRGB)
	if err := dst.CopyImageRect(img, r.Left, r.Top, r.Right, r.Bottom, 0, 0); err != nil {
		return nil, err
	}
	return dst, nil
}

// Preview scales the frame to fit the display, and draws the region of interest
// as four lines that run across the whole frame.
func Preview(img *cimg.Image, roi *Rect, displayWidth, displayHeight int) image.Image {
	small := ResizeToFit(img, displayWidth, displayHeight)
	dc := gg.NewContextForRGBA(ToRGBA(small))
	if roi != nil {
		sx := float64(small.Width) / float64(img.Width)
		sy := float64(small.Height) / float64(img.Height)
		drawROILines(dc, *roi, sx, sy, 0, 0, float64(small.Width), float64(small.Height))
	}
	return dc.Image()
}

func drawROILines(dc *gg.Context, roi Rect, sx, sy, x0, y0, width, height float64) {
	dc.SetRGB(1, 0, 0)
	dc.SetLineWidth(1)
	for _, y := range []int{roi.Top, roi.Bottom} {
		yy := y0 + float64(y)*sy
		dc.DrawLine(x0, yy, x0+width, yy)
	}
	for _, x := range []int{roi.Left, roi.Right} {
		xx := x0 + float64(x)*sx
		dc.DrawLine(xx, y0, xx, y0+height)
	}
	dc.Stroke()
}

// Plot lays the frame out on axes with pixel ticks, so that a region of interest can be
// measured off it. The frame is drawn at its native size when it fits inside
// (maxWidth, maxHeight), and scaled down otherwise.
func Plot(img *cimg.Image, roi *Rect, maxWidth, maxHeight int) image.Image {
	const margin = 50
	const tickStep = 100
	w, h := FitSize(img.Width, img.Height, maxWidth-2*margin, maxHeight-2*margin)
	if w > img.Width || h > img.Height {
		w, h = img.Width, img.Height
	}

	frame := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(frame, frame.Bounds(), ToRGBA(img), image.Rect(0, 0, img.Width, img.Height), draw.Src, nil)

	dc := gg.NewContext(w+2*margin, h+2*margin)
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	dc.DrawImage(frame, margin, margin)

	sx := float64(w) / float64(img.Width)
	sy := float64(h) / float64(img.Height)

	dc.SetRGB(0, 0, 0)
	dc.SetLineWidth(1)
	dc.DrawRectangle(margin, margin, float64(w), float64(h))
	dc.Stroke()
	for x := 0; x <= img.Width; x += tickStep {
		xx := margin + float64(x)*sx
		dc.DrawLine(xx, margin+float64(h), xx, margin+float64(h)+5)
		dc.Stroke()
		dc.DrawStringAnchored(fmt.Sprint(x), xx, margin+float64(h)+8, 0.5, 1)
	}
	for y := 0; y <= img.Height; y += tickStep {
		yy := margin + float64(y)*sy
		dc.DrawLine(margin-5, yy, margin, yy)
		dc.Stroke()
		dc.DrawStringAnchored(fmt.Sprint(y), margin-8, yy, 1, 0.5)
	}
	if roi != nil {
		drawROILines(dc, *roi, sx, sy, margin, margin, float64(w), float64(h))
	}
	return dc.Image()
}
