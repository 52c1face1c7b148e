package grid

import (
	"fmt"

	"github.com/nvr-ai/go-register/common"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Binarize converts a color image into a binary mask in which ink and ruling
// lines are foreground (255) and paper is background (0).
//
// A global threshold fails under the shadows and gradients of a photographed
// page, so each pixel is compared against the mean (or Gaussian-weighted mean)
// of its BlockSize neighborhood and becomes foreground when it is at least
// Offset darker.
//
// Arguments:
//   - img: An 8-bit BGR, BGRA or grayscale image. It is not modified.
//   - cfg: Threshold parameters.
//
// Returns:
//   - gocv.Mat: A CV_8UC1 mask of the same size. The caller must Close it.
//   - error: *common.InvalidImageError for empty or unsupported input.
func Binarize(img gocv.Mat, cfg BinarizeConfig) (gocv.Mat, error) {
	if img.Empty() || img.Rows() == 0 || img.Cols() == 0 {
		return gocv.NewMat(), &common.InvalidImageError{Reason: "zero-area image"}
	}

	gray := gocv.NewMat()
	defer gray.Close()

	var err error
	switch img.Type() {
	case gocv.MatTypeCV8UC1:
		img.CopyTo(&gray)
	case gocv.MatTypeCV8UC3:
		err = gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	case gocv.MatTypeCV8UC4:
		err = gocv.CvtColor(img, &gray, gocv.ColorBGRAToGray)
	default:
		return gocv.NewMat(), &common.InvalidImageError{Reason: fmt.Sprintf("unsupported pixel type %d", int(img.Type()))}
	}
	if err != nil {
		return gocv.NewMat(), errors.Wrap(err, "converting to grayscale")
	}

	mask := gocv.NewMat()
	if err := gocv.AdaptiveThreshold(gray, &mask, 255, cfg.adaptiveType(), gocv.ThresholdBinaryInv, cfg.blockSize(), cfg.Offset); err != nil {
		mask.Close()
		return gocv.NewMat(), errors.Wrapf(err, "adaptive threshold with block size %d", cfg.blockSize())
	}
	return mask, nil
}
