// Package classify labels attendance-mark cells as present, absent or blank.
package classify

import (
	"context"
	"image"
	"image/color"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Label is the attendance category of a mark cell.
type Label string

const (
	// LabelPresent is a present mark.
	LabelPresent Label = "P"
	// LabelAbsent is an absent mark.
	LabelAbsent Label = "A"
	// LabelBlank is an empty cell.
	LabelBlank Label = "BLANK"
)

// Categories is the model output order.
var Categories = []Label{LabelPresent, LabelAbsent, LabelBlank}

// InputSize is the side of the square grayscale image fed to classifiers.
const InputSize = 64

// ErrEmptyCell is returned when asked to classify an empty image.
var ErrEmptyCell = errors.New("empty cell image")

// Result is the classification of one cell.
type Result struct {
	Label      Label   `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Classifier labels a cropped mark cell.
//
// Implementations must be safe for concurrent use.
type Classifier interface {
	Classify(ctx context.Context, cell gocv.Mat) (Result, error)
}

// Preprocess converts a cell to a row-major InputSize x InputSize grayscale
// buffer with values in [0, 1] (0 is black).
//
// Arguments:
//   - cell: A BGR, BGRA or grayscale cell image.
//
// Returns:
//   - []float32: InputSize*InputSize values.
//   - error: ErrEmptyCell for an empty image, or a conversion error.
func Preprocess(cell gocv.Mat) ([]float32, error) {
	if cell.Empty() || cell.Rows() == 0 || cell.Cols() == 0 {
		return nil, ErrEmptyCell
	}

	gray := gocv.NewMat()
	defer gray.Close()
	switch cell.Channels() {
	case 1:
		cell.CopyTo(&gray)
	case 4:
		gocv.CvtColor(cell, &gray, gocv.ColorBGRAToGray)
	default:
		gocv.CvtColor(cell, &gray, gocv.ColorBGRToGray)
	}

	img, err := gray.ToImage()
	if err != nil {
		return nil, errors.Wrap(err, "converting cell to image")
	}
	scaled := resize.Resize(InputSize, InputSize, img, resize.Bilinear)

	return grayscale(scaled), nil
}

func grayscale(img image.Image) []float32 {
	b := img.Bounds()
	out := make([]float32, 0, b.Dx()*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			out = append(out, float32(g.Y)/255)
		}
	}
	return out
}
