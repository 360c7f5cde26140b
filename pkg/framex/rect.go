package framex

import (
	"fmt"
	"image"
	"strconv"
	"strings"
)

// Rect is a region of interest, in pixels.
// Top and Left are inclusive, Bottom and Right are exclusive.
type Rect struct {
	Top    int `json:"top" validate:"min=0"`
	Bottom int `json:"bottom" validate:"gtfield=Top"`
	Left   int `json:"left" validate:"min=0"`
	Right  int `json:"right" validate:"gtfield=Left"`
}

func (r Rect) Width() int {
	return r.Right - r.Left
}

func (r Rect) Height() int {
	return r.Bottom - r.Top
}

func (r Rect) String() string {
	return fmt.Sprintf("top:%v bottom:%v left:%v right:%v", r.Top, r.Bottom, r.Left, r.Right)
}

// ImageRect converts to an image.Rectangle
func (r Rect) ImageRect() image.Rectangle {
	return image.Rect(r.Left, r.Top, r.Right, r.Bottom)
}

// Check returns an error unless the rectangle is non-empty and lies entirely inside
// an image of the given size. Out of range rectangles are not clipped.
func (r Rect) Check(width, height int) error {
	if r.Top < 0 || r.Left < 0 {
		return fmt.Errorf("Region %v has a negative offset", r)
	}
	if r.Top >= r.Bottom {
		return fmt.Errorf("Region %v: top must be less than bottom", r)
	}
	if r.Left >= r.Right {
		return fmt.Errorf("Region %v: left must be less than right", r)
	}
	if r.Bottom > height || r.Right > width {
		return fmt.Errorf("Region %v extends beyond the %v x %v frame", r, width, height)
	}
	return nil
}

// ParseRect parses "top,bottom,left,right"
func ParseRect(s string) (Rect, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Rect{}, fmt.Errorf("Region '%v' must be four comma-separated integers: top,bottom,left,right", s)
	}
	v := [4]int{}
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Rect{}, fmt.Errorf("Region '%v' has an invalid number '%v'", s, p)
		}
		v[i] = n
	}
	return Rect{Top: v[0], Bottom: v[1], Left: v[2], Right: v[3]}, nil
}
