//go:build ocr

package ocr

import (
	"context"
	"sync"

	"github.com/nvr-ai/go-register/images"
	"github.com/otiai10/gosseract/v2"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Tesseract recognizes text with the Tesseract engine.
//
// A gosseract client is not safe for concurrent use, so calls are serialized.
type Tesseract struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// NewTesseract creates a recognizer. It must be closed when no longer needed.
//
// Arguments:
//   - opts: Languages and page segmentation mode.
//
// Returns:
//   - *Tesseract: The recognizer.
//   - error: An error if Tesseract rejects the options.
func NewTesseract(opts Options) (*Tesseract, error) {
	if len(opts.Languages) == 0 {
		opts.Languages = DefaultOptions().Languages
	}

	client := gosseract.NewClient()
	if err := client.SetLanguage(opts.Languages...); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "setting tesseract language")
	}
	if err := client.SetPageSegMode(gosseract.PageSegMode(opts.PageSegMode)); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "setting tesseract page segmentation mode")
	}

	return &Tesseract{client: client}, nil
}

// Recognize implements Recognizer.
func (t *Tesseract) Recognize(ctx context.Context, cell gocv.Mat) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if cell.Empty() {
		return Result{}, ErrEmptyCell
	}

	png, err := images.Encode(images.FormatPNG, cell)
	if err != nil {
		return Result{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.client.SetImageFromBytes(png); err != nil {
		return Result{}, errors.Wrap(err, "setting tesseract image")
	}
	text, err := t.client.Text()
	if err != nil {
		return Result{}, errors.Wrap(err, "tesseract recognition")
	}

	text = Normalize(text)
	if text == "" {
		return Result{}, nil
	}

	words, err := t.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return Result{}, errors.Wrap(err, "reading tesseract word confidences")
	}
	confidences := make([]float64, 0, len(words))
	for _, w := range words {
		confidences = append(confidences, w.Confidence)
	}

	return Result{Text: text, Confidence: meanConfidence(confidences)}, nil
}

// Close releases the Tesseract client.
func (t *Tesseract) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == nil {
		return nil
	}
	err := t.client.Close()
	t.client = nil
	return err
}
