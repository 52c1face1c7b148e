//go:build !ocr

package ocr

import (
	"context"

	"gocv.io/x/gocv"
)

// Tesseract is a stub used when the "ocr" build tag is not set.
type Tesseract struct{}

// NewTesseract returns ErrOCRNotEnabled. Rebuild with -tags ocr to enable OCR.
func NewTesseract(opts Options) (*Tesseract, error) {
	return nil, ErrOCRNotEnabled
}

// Recognize returns ErrOCRNotEnabled.
func (t *Tesseract) Recognize(ctx context.Context, cell gocv.Mat) (Result, error) {
	return Result{}, ErrOCRNotEnabled
}

// Close is a no-op. It is safe to call on a nil recognizer.
func (t *Tesseract) Close() error {
	return nil
}
