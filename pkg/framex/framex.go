// Package framex reads, converts and rewrites recording frame images.
//
// In memory, a frame is a 3-channel cimg image, no matter what format the file on disk has.
// Ultrasound frames are normally 8-bit grayscale PNG files, and these are promoted to RGB
// by replicating the single channel. Cropping and flipping operate on the file itself,
// and preserve its pixel format.
package framex

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/sonoprep/pkg/iox"
	"golang.org/x/image/draw"
)

// ErrUndecodable wraps any failure to decode an image file that we were able to read
var ErrUndecodable = errors.New("Undecodable image")

// Codec implements the frame operations that touch files
type Codec struct {
	JPEGQuality int // Only used when rewriting .jpg files. Zero means 95.
}

// Decode reads an image file, and returns it as RGB
func (c *Codec) Decode(path string) (*cimg.Image, error) {
	src, err := readImage(path)
	if err != nil {
		return nil, err
	}
	return ToRGB(src), nil
}

// Crop cuts the image file down to the region, and overwrites it.
// The region must lie inside the image.
func (c *Codec) Crop(path string, r Rect) error {
	src, err := readImage(path)
	if err != nil {
		return err
	}
	b := src.Bounds()
	if err := r.Check(b.Dx(), b.Dy()); err != nil {
		return err
	}
	sub := r.ImageRect().Add(b.Min)
	var cropped image.Image
	if s, ok := src.(interface {
		SubImage(r image.Rectangle) image.Image
	}); ok {
		cropped = s.SubImage(sub)
	} else {
		dst := image.NewNRGBA(image.Rect(0, 0, sub.Dx(), sub.Dy()))
		draw.Draw(dst, dst.Bounds(), src, sub.Min, draw.Src)
		cropped = dst
	}
	return c.writeImage(path, cropped)
}

// FlipVertical turns the image file upside down, and overwrites it
func (c *Codec) FlipVertical(path string) error {
	src, err := readImage(path)
	if err != nil {
		return err
	}
	return c.writeImage(path, flipVertical(src))
}

func readImage(path string) (image.Image, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w '%v': %v", ErrUndecodable, filepath.Base(path), err)
	}
	return img, nil
}

// The encoder is chosen by the file extension
func (c *Codec) writeImage(path string, img image.Image) error {
	var buf bytes.Buffer
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		q := c.JPEGQuality
		if q == 0 {
			q = 95
		}
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: q}); err != nil {
			return fmt.Errorf("Failed to encode '%v': %w", filepath.Base(path), err)
		}
	default:
		if err := png.Encode(&buf, img); err != nil {
			return fmt.Errorf("Failed to encode '%v': %w", filepath.Base(path), err)
		}
	}
	return iox.WriteFile(path, buf.Bytes())
}

func flipRows(pix []uint8, stride, rowBytes, height int) {
	tmp := make([]uint8, rowBytes)
	for y := 0; y < height/2; y++ {
		a := pix[y*stride : y*stride+rowBytes]
		b := pix[(height-1-y)*stride : (height-1-y)*stride+rowBytes]
		copy(tmp, a)
		copy(a, b)
		copy(b, tmp)
	}
}

// flipVertical flips in place when the pixel layout is known, otherwise it converts to NRGBA first
func flipVertical(src image.Image) image.Image {
	b := src.Bounds()
	switch s := src.(type) {
	case *image.Gray:
		flipRows(s.Pix[s.PixOffset(b.Min.X, b.Min.Y):], s.Stride, b.Dx(), b.Dy())
		return s
	case *image.Gray16:
		flipRows(s.Pix[s.PixOffset(b.Min.X, b.Min.Y):], s.Stride, b.Dx()*2, b.Dy())
		return s
	case *image.RGBA:
		flipRows(s.Pix[s.PixOffset(b.Min.X, b.Min.Y):], s.Stride, b.Dx()*4, b.Dy())
		return s
	case *image.NRGBA:
		flipRows(s.Pix[s.PixOffset(b.Min.X, b.Min.Y):], s.Stride, b.Dx()*4, b.Dy())
		return s
	case *image.RGBA64:
		flipRows(s.Pix[s.PixOffset(b.Min.X, b.Min.Y):], s.Stride, b.Dx()*8, b.Dy())
		return s
	case *image.NRGBA64:
		flipRows(s.Pix[s.PixOffset(b.Min.X, b.Min.Y):], s.Stride, b.Dx()*8, b.Dy())
		return s
	case *image.Paletted:
		flipRows(s.Pix[s.PixOffset(b.Min.X, b.Min.Y):], s.Stride, b.Dx(), b.Dy())
		return s
	}
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	flipRows(dst.Pix, dst.Stride, b.Dx()*4, b.Dy())
	return dst
}

// ToRGB converts any image into a 3-channel cimg image
func ToRGB(src image.Image) *cimg.Image {
	b := src.Bounds()
	width := b.Dx()
	height := b.Dy()
	dst := cimg.NewImage(width, height, cimg.PixelFormatRGB)
	switch s := src.(type) {
	case *image.Gray:
		for y := 0; y < height; y++ {
			srow := s.Pix[s.PixOffset(b.Min.X, b.Min.Y+y):][:width]
			drow := dst.Pixels[y*dst.Stride:]
			for x, v := range srow {
				drow[x*3] = v
				drow[x*3+1] = v
				drow[x*3+2] = v
			}
		}
	case *image.NRGBA:
		for y := 0; y < height; y++ {
			srow := s.Pix[s.PixOffset(b.Min.X, b.Min.Y+y):][:width*4]
			drow := dst.Pixels[y*dst.Stride:]
			for x := 0; x < width; x++ {
				drow[x*3] = srow[x*4]
				drow[x*3+1] = srow[x*4+1]
				drow[x*3+2] = srow[x*4+2]
			}
		}
	default:
		for y := 0; y < height; y++ {
			drow := dst.Pixels[y*dst.Stride:]
			for x := 0; x < width; x++ {
				r, g, bl, _ := src.At(b.Min.X+x, b.Min.Y+y).RGBA()
				drow[x*3] = uint8(r >> 8)
				drow[x*3+1] = uint8(g >> 8)
				drow[x*3+2] = uint8(bl >> 8)
			}
		}
	}
	return dst
}

// Gray converts an RGB frame to single channel intensity, using the fixed-point BT.601
// weights. When roi is not nil, the region is first copied out with Crop, and the result
// has the size of the region. Gray pixels that were promoted to RGB convert back exactly.
func Gray(img *cimg.Image, roi *Rect) (*image.Gray, error) {
	if roi != nil {
		var err error
		if img, err = Crop(img, *roi); err != nil {
			return nil, err
		}
	}
	dst := image.NewGray(image.Rect(0, 0, img.Width, img.Height))
	for y := 0; y < img.Height; y++ {
		srow := img.Pixels[y*img.Stride:]
		drow := dst.Pix[y*dst.Stride : y*dst.Stride+img.Width]
		for x := range drow {
			rr := uint32(srow[x*3])
			gg := uint32(srow[x*3+1])
			bb := uint32(srow[x*3+2])
			drow[x] = uint8((rr*4899 + gg*9617 + bb*1868 + 8192) >> 14)
		}
	}
	return dst, nil
}
