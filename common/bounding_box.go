// Package common - Geometry and error types shared by every pipeline stage.
package common

import (
	"encoding/json"
	"fmt"
	"image"

	"github.com/pkg/errors"
)

// BoundingBox is an axis-aligned rectangle in pixel coordinates identifying one
// candidate cell region.
type BoundingBox struct {
	X, Y          int
	Width, Height int
}

// NewBoundingBox builds a bounding box from an image.Rectangle.
//
// Arguments:
// - r: The rectangle to convert. It is canonicalized first.
//
// Returns:
// - The equivalent BoundingBox.
//
// @example
// box := NewBoundingBox(image.Rect(10, 20, 110, 70))
// fmt.Println(box) // (10,20 100x50)
func NewBoundingBox(r image.Rectangle) BoundingBox {
	r = r.Canon()
	return BoundingBox{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("(%d,%d %dx%d)", b.X, b.Y, b.Width, b.Height)
}

// ToRect converts the bounding box to an image.Rectangle with an exclusive
// maximum corner.
//
// Returns:
// - An image.Rectangle covering the same pixels.
//
// @example
// box := BoundingBox{X: 100, Y: 100, Width: 50, Height: 20}
// rect := box.ToRect() // (100,100)-(150,120)
func (b BoundingBox) ToRect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height)
}

// Area returns the number of pixels covered by the box.
func (b BoundingBox) Area() int {
	return b.Width * b.Height
}

// Empty reports whether the box covers no pixels.
func (b BoundingBox) Empty() bool {
	return b.Width <= 0 || b.Height <= 0
}

// In reports whether the box lies entirely inside an image of the given size.
//
// Arguments:
// - width: The image width in pixels.
// - height: The image height in pixels.
//
// Returns:
// - true when x,y >= 0, width,height > 0 and the box does not cross the image edge.
func (b BoundingBox) In(width, height int) bool {
	if b.Empty() || b.X < 0 || b.Y < 0 {
		return false
	}
	return b.X+b.Width <= width && b.Y+b.Height <= height
}

// MarshalJSON encodes the box as the 4-tuple [x, y, w, h].
func (b BoundingBox) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]int{b.X, b.Y, b.Width, b.Height})
}

// UnmarshalJSON decodes the 4-tuple [x, y, w, h].
func (b *BoundingBox) UnmarshalJSON(data []byte) error {
	var tuple []int
	if err := json.Unmarshal(data, &tuple); err != nil {
		return errors.Wrap(err, "bounding box must be a [x, y, w, h] array")
	}
	if len(tuple) != 4 {
		return errors.Errorf("bounding box must have 4 elements, got %d", len(tuple))
	}
	b.X, b.Y, b.Width, b.Height = tuple[0], tuple[1], tuple[2], tuple[3]
	return nil
}
