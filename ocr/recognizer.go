// Package ocr provides the text recognizer used for the name and roll-number
// columns of a register.
//
// The Tesseract implementation wraps gosseract and is only compiled with the
// "ocr" build tag, since it needs the Tesseract shared libraries:
//
//	go build -tags ocr
//
// Without the tag, NewTesseract returns ErrOCRNotEnabled and callers fall back
// to Nop.
package ocr

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
	"golang.org/x/text/unicode/norm"
)

// ErrOCRNotEnabled is returned when OCR support was not compiled in.
var ErrOCRNotEnabled = errors.New("OCR support not enabled; rebuild with -tags ocr")

// ErrEmptyCell is returned when asked to recognize an empty image.
var ErrEmptyCell = errors.New("empty cell image")

// Result is the recognized text of one cell.
type Result struct {
	// Text is trimmed and NFC-normalized. Empty when nothing was recognized.
	Text string `json:"text"`
	// Confidence is in [0, 1]. Zero when Text is empty.
	Confidence float64 `json:"confidence"`
}

// Recognizer extracts text from a cropped cell image.
//
// Implementations must be safe for concurrent use.
type Recognizer interface {
	Recognize(ctx context.Context, cell gocv.Mat) (Result, error)
}

// Options configures the Tesseract recognizer.
type Options struct {
	// Languages is a list of Tesseract language codes (default: eng).
	Languages []string `json:"languages" yaml:"languages"`
	// PageSegMode is a Tesseract page segmentation mode (default: 7, single text line).
	PageSegMode int `json:"page_seg_mode" yaml:"page_seg_mode"`
}

// DefaultOptions returns options suited to single-line register cells.
func DefaultOptions() Options {
	return Options{Languages: []string{"eng"}, PageSegMode: PSMSingleLine}
}

// PSMSingleLine treats the image as a single text line.
const PSMSingleLine = 7

// Nop recognizes nothing. It is used when Tesseract is unavailable.
type Nop struct{}

// Recognize implements Recognizer.
func (Nop) Recognize(ctx context.Context, cell gocv.Mat) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if cell.Empty() {
		return Result{}, ErrEmptyCell
	}
	return Result{}, nil
}

// Normalize trims text, folds internal whitespace runs (including the line
// breaks Tesseract emits) into single spaces, and applies Unicode NFC.
//
// @example
// ocr.Normalize("  Ravi\nKumar \n") // "Ravi Kumar"
func Normalize(text string) string {
	return norm.NFC.String(strings.Join(strings.Fields(text), " "))
}

// meanConfidence averages Tesseract word confidences (0-100) into [0, 1].
func meanConfidence(confidences []float64) float64 {
	if len(confidences) == 0 {
		return 0
	}
	var sum float64
	for _, c := range confidences {
		sum += c
	}
	return min(max(sum/float64(len(confidences))/100, 0), 1)
}
