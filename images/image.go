// Package images - Upload decoding and encoding for the register pipeline.
//
// Everything that turns raw request bytes into a gocv.Mat (and back) lives
// here so the grid package only ever sees decoded pixels.
package images

import (
	"bytes"
	"image"
	"io"

	"github.com/chai2010/webp"
	"github.com/nvr-ai/go-register/common"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
	"golang.org/x/image/tiff"
)

// Decode decodes raw image bytes into a 3-channel BGR Mat.
//
// JPEG, PNG and BMP go through OpenCV's decoder. WebP and TIFF are decoded in
// Go first because OpenCV builds frequently ship without those codecs.
//
// Arguments:
// - data: The raw, encoded image bytes.
//
// Returns:
// - gocv.Mat: The decoded color image. The caller must Close it.
// - error: *common.InvalidImageError if the bytes are not an image or the image has zero area.
//
// @example
// mat, err := images.Decode(upload)
//
//	if err != nil {
//	    return err
//	}
//
// defer mat.Close()
func Decode(data []byte) (gocv.Mat, error) {
	if len(data) == 0 {
		return gocv.NewMat(), &common.InvalidImageError{Reason: "empty input"}
	}

	var (
		mat gocv.Mat
		err error
	)
	switch DetectFormat(data) {
	case FormatWebP:
		mat, err = decodeGo(data, webp.Decode)
	case FormatTIFF:
		mat, err = decodeGo(data, tiff.Decode)
	default:
		mat, err = gocv.IMDecode(data, gocv.IMReadColor)
	}
	if err != nil {
		return gocv.NewMat(), &common.InvalidImageError{Reason: "could not decode image", Err: err}
	}
	if mat.Empty() || mat.Rows() == 0 || mat.Cols() == 0 {
		mat.Close()
		return gocv.NewMat(), &common.InvalidImageError{Reason: "could not decode image"}
	}

	return mat, nil
}

// decodeGo decodes with a Go image decoder and converts the result to a BGR Mat.
func decodeGo(data []byte, decode func(r io.Reader) (image.Image, error)) (gocv.Mat, error) {
	img, err := decode(bytes.NewReader(data))
	if err != nil {
		return gocv.NewMat(), err
	}
	if img.Bounds().Empty() {
		return gocv.NewMat(), errors.New("zero-area image")
	}
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.NewMat(), errors.Wrap(err, "converting decoded image to Mat")
	}
	return mat, nil
}

// Fit downscales img so that neither dimension exceeds maxDim, preserving the
// aspect ratio. Images already within bounds (or maxDim <= 0) are cloned.
//
// Arguments:
// - img: The source image. It is not modified.
// - maxDim: The maximum allowed width or height in pixels.
//
// Returns:
// - gocv.Mat: A new Mat owned by the caller.
// - error: An error if OpenCV fails to resize.
func Fit(img gocv.Mat, maxDim int) (gocv.Mat, error) {
	w, h := img.Cols(), img.Rows()
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return img.Clone(), nil
	}

	scale := float64(maxDim) / float64(max(w, h))
	size := image.Pt(max(1, int(float64(w)*scale)), max(1, int(float64(h)*scale)))

	dst := gocv.NewMat()
	if err := gocv.Resize(img, &dst, size, 0, 0, gocv.InterpolationArea); err != nil {
		dst.Close()
		return gocv.NewMat(), errors.Wrapf(err, "resizing to %dx%d", size.X, size.Y)
	}
	return dst, nil
}
