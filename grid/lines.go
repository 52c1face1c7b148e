package grid

import (
	"image"

	"github.com/nvr-ai/go-register/common"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// KernelLength returns the structuring element length for an image dimension:
// dim / ScaleDivisor, never below MinKernelLength (or 1).
//
// Arguments:
//   - dim: Image width for horizontal lines, height for vertical lines.
//   - cfg: Line extraction parameters.
//
// Returns:
//   - int: The bar length in pixels.
//
// @example
// grid.KernelLength(400, grid.LineConfig{ScaleDivisor: 40}) // 10
func KernelLength(dim int, cfg LineConfig) int {
	divisor := cfg.ScaleDivisor
	if divisor <= 0 {
		divisor = DefaultScaleDivisor
	}
	return max(dim/divisor, cfg.MinKernelLength, 1)
}

// ExtractHorizontalLines keeps only the foreground runs of the mask that can
// contain a 1-pixel-tall bar of KernelLength(width) pixels.
//
// Handwriting, text strokes and vertical rules are erased; horizontal ruling
// lines survive the opening at their original extent.
//
// Arguments:
//   - mask: A CV_8UC1 binary mask from Binarize. It is not modified.
//   - cfg: Line extraction parameters.
//
// Returns:
//   - gocv.Mat: The horizontal line mask. The caller must Close it.
//   - error: An error if the mask is unusable or the morphology fails.
func ExtractHorizontalLines(mask gocv.Mat, cfg LineConfig) (gocv.Mat, error) {
	return open(mask, image.Pt(KernelLength(mask.Cols(), cfg), 1), cfg.iterations())
}

// ExtractVerticalLines is the vertical counterpart of ExtractHorizontalLines,
// using a 1-pixel-wide bar of KernelLength(height) pixels.
func ExtractVerticalLines(mask gocv.Mat, cfg LineConfig) (gocv.Mat, error) {
	return open(mask, image.Pt(1, KernelLength(mask.Rows(), cfg)), cfg.iterations())
}

// open erodes the mask iterations times and then dilates it iterations times
// with a rectangular kernel of the given size.
func open(mask gocv.Mat, size image.Point, iterations int) (gocv.Mat, error) {
	if mask.Empty() || mask.Rows() == 0 || mask.Cols() == 0 {
		return gocv.NewMat(), &common.InvalidImageError{Reason: "empty mask"}
	}
	if mask.Type() != gocv.MatTypeCV8UC1 {
		return gocv.NewMat(), &common.InvalidImageError{Reason: "mask must be single-channel 8-bit"}
	}

	kernel := gocv.GetStructuringElement(gocv.MorphRect, size)
	defer kernel.Close()

	out := mask.Clone()
	for i := 0; i < iterations; i++ {
		if err := gocv.Erode(out, &out, kernel); err != nil {
			out.Close()
			return gocv.NewMat(), errors.Wrapf(err, "eroding with %dx%d kernel", size.X, size.Y)
		}
	}
	for i := 0; i < iterations; i++ {
		if err := gocv.Dilate(out, &out, kernel); err != nil {
			out.Close()
			return gocv.NewMat(), errors.Wrapf(err, "dilating with %dx%d kernel", size.X, size.Y)
		}
	}

	return out, nil
}
