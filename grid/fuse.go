package grid

import (
	"github.com/nvr-ai/go-register/common"
	"gocv.io/x/gocv"
)

// Fuse combines the horizontal and vertical line masks into the grid skeleton
// and inverts it, so that enclosed cell interiors become the foreground
// regions consumed by FindCells.
//
// Arguments:
//   - horizontal: Output of ExtractHorizontalLines.
//   - vertical: Output of ExtractVerticalLines, same size as horizontal.
//
// Returns:
//   - gocv.Mat: A CV_8UC1 mask where line pixels are 0 and everything else is 255.
//   - error: *common.InvalidImageError if the masks are empty or differ in size.
func Fuse(horizontal, vertical gocv.Mat) (gocv.Mat, error) {
	if horizontal.Empty() || vertical.Empty() {
		return gocv.NewMat(), &common.InvalidImageError{Reason: "empty line mask"}
	}
	if horizontal.Rows() != vertical.Rows() || horizontal.Cols() != vertical.Cols() {
		return gocv.NewMat(), &common.InvalidImageError{Reason: "line masks differ in size"}
	}

	skeleton := gocv.NewMat()
	gocv.BitwiseOr(horizontal, vertical, &skeleton)
	gocv.BitwiseNot(skeleton, &skeleton)
	return skeleton, nil
}
