package classify

import (
	"context"

	"gocv.io/x/gocv"
)

// Density classifies marks by the share of dark pixels. It needs no model and
// is the default until a trained classifier is configured.
type Density struct {
	// DarkLevel is the normalized intensity below which a pixel counts as ink.
	DarkLevel float32 `json:"dark_level" yaml:"dark_level"`
	// BlankBelow is the ink ratio under which the cell is blank.
	BlankBelow float64 `json:"blank_below" yaml:"blank_below"`
	// PresentAbove is the ink ratio over which the cell is marked present.
	PresentAbove float64 `json:"present_above" yaml:"present_above"`
}

// NewDensity returns the heuristic with its standard thresholds.
func NewDensity() Density {
	return Density{DarkLevel: 0.5, BlankBelow: 0.05, PresentAbove: 0.30}
}

// Confidence reported for each heuristic outcome.
const (
	densityBlankConfidence   = 0.90
	densityPresentConfidence = 0.60
	densityAbsentConfidence  = 0.40
)

// Classify implements Classifier.
func (d Density) Classify(ctx context.Context, cell gocv.Mat) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	pixels, err := Preprocess(cell)
	if err != nil {
		return Result{}, err
	}
	return d.classify(InkRatio(pixels, d.DarkLevel)), nil
}

func (d Density) classify(ratio float64) Result {
	switch {
	case ratio < d.BlankBelow:
		return Result{Label: LabelBlank, Confidence: densityBlankConfidence}
	case ratio > d.PresentAbove:
		return Result{Label: LabelPresent, Confidence: densityPresentConfidence}
	default:
		return Result{Label: LabelAbsent, Confidence: densityAbsentConfidence}
	}
}

// InkRatio returns the fraction of values strictly below level.
func InkRatio(pixels []float32, level float32) float64 {
	if len(pixels) == 0 {
		return 0
	}
	dark := 0
	for _, p := range pixels {
		if p < level {
			dark++
		}
	}
	return float64(dark) / float64(len(pixels))
}
