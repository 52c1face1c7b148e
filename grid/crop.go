package grid

import (
	"fmt"
	"image/color"

	"github.com/nvr-ai/go-register/common"
	"gocv.io/x/gocv"
)

// AnnotationColor is the outline color drawn around detected cells (BGR order
// in the underlying Mat, so this renders green).
var AnnotationColor = color.RGBA{0, 255, 0, 0}

// AnnotationThickness is the outline width in pixels.
const AnnotationThickness = 2

// Cell is one cropped register cell.
type Cell struct {
	// Box is the cell rectangle in the pixel space of the original image.
	Box common.BoundingBox
	// Image is an independent copy of the cell's pixels.
	Image gocv.Mat
}

// Close releases the cell's pixel buffer.
func (c *Cell) Close() error {
	return c.Image.Close()
}

// Crop copies each box out of img and, when annotate is set, draws every box
// onto a copy of img.
//
// Cell images never alias img, so the caller may close or modify img once Crop
// returns. img itself is never drawn on.
//
// Arguments:
//   - img: The original color image.
//   - boxes: Boxes in the order the cells should be returned.
//   - annotate: Whether to draw outlines on the returned copy.
//
// Returns:
//   - gocv.Mat: A copy of img, annotated if requested. The caller must Close it.
//   - []Cell: One cell per box, same order. The caller must Close each.
//   - error: *common.InvalidImageError if img is empty or a box falls outside it.
func Crop(img gocv.Mat, boxes []common.BoundingBox, annotate bool) (gocv.Mat, []Cell, error) {
	if img.Empty() || img.Rows() == 0 || img.Cols() == 0 {
		return gocv.NewMat(), nil, &common.InvalidImageError{Reason: "zero-area image"}
	}

	width, height := img.Cols(), img.Rows()
	for _, box := range boxes {
		if !box.In(width, height) {
			return gocv.NewMat(), nil, &common.InvalidImageError{
				Reason: fmt.Sprintf("box %s outside %dx%d image", box, width, height),
			}
		}
	}

	annotated := img.Clone()
	cells := make([]Cell, 0, len(boxes))
	for _, box := range boxes {
		region := img.Region(box.ToRect())
		cells = append(cells, Cell{Box: box, Image: region.Clone()})
		region.Close()

		if annotate {
			gocv.Rectangle(&annotated, box.ToRect(), AnnotationColor, AnnotationThickness)
		}
	}

	return annotated, cells, nil
}
