package classify

import (
	"context"

	"github.com/chewxy/math32"
	"github.com/nvr-ai/go-register/inference"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
	"gorgonia.org/tensor"
)

// ONNXOptions locates a mark model. The model takes a [1, 1, 64, 64] float
// tensor and returns [1, 3] logits in Categories order.
type ONNXOptions struct {
	ModelPath   string `json:"model_path" yaml:"model_path"`
	LibraryPath string `json:"library_path" yaml:"library_path"`
	InputName   string `json:"input_name" yaml:"input_name"`
	OutputName  string `json:"output_name" yaml:"output_name"`
}

// ONNX classifies marks with a trained ONNX model.
type ONNX struct {
	session *inference.Session
}

// NewONNX loads the mark model.
//
// Arguments:
//   - opts: Model location. Node names default to "input" and "output".
//
// Returns:
//   - *ONNX: The classifier. The caller must Close it.
//   - error: An error if ONNX Runtime or the model cannot be loaded.
func NewONNX(opts ONNXOptions) (*ONNX, error) {
	if opts.InputName == "" {
		opts.InputName = "input"
	}
	if opts.OutputName == "" {
		opts.OutputName = "output"
	}

	session, err := inference.NewSession(inference.SessionOptions{
		ModelPath:   opts.ModelPath,
		LibraryPath: opts.LibraryPath,
		InputName:   opts.InputName,
		OutputName:  opts.OutputName,
		InputShape:  []int64{1, 1, InputSize, InputSize},
		OutputShape: []int64{1, int64(len(Categories))},
	})
	if err != nil {
		return nil, errors.Wrap(err, "loading mark classifier")
	}
	return &ONNX{session: session}, nil
}

// Classify implements Classifier.
func (o *ONNX) Classify(ctx context.Context, cell gocv.Mat) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	pixels, err := Preprocess(cell)
	if err != nil {
		return Result{}, err
	}

	logits, err := o.session.Run(pixels)
	if err != nil {
		return Result{}, err
	}
	return FromLogits(logits)
}

// Close releases the model session.
func (o *ONNX) Close() {
	o.session.Close()
}

// FromLogits turns raw model scores into the most likely label and its
// softmax probability. Ties resolve to the earlier category.
func FromLogits(logits []float32) (Result, error) {
	if len(logits) != len(Categories) {
		return Result{}, errors.Errorf("expected %d logits, got %d", len(Categories), len(logits))
	}

	probs := Softmax(logits)
	t := tensor.New(tensor.WithShape(len(probs)), tensor.WithBacking(probs))
	best, err := t.Argmax(0)
	if err != nil {
		return Result{}, errors.Wrap(err, "argmax over class probabilities")
	}
	idx, ok := best.ScalarValue().(int)
	if !ok || idx < 0 || idx >= len(Categories) {
		return Result{}, errors.Errorf("unexpected argmax result %v", best.ScalarValue())
	}

	return Result{Label: Categories[idx], Confidence: float64(probs[idx])}, nil
}

// Softmax returns the numerically stable softmax of logits.
func Softmax(logits []float32) []float32 {
	if len(logits) == 0 {
		return nil
	}
	peak := logits[0]
	for _, v := range logits[1:] {
		peak = math32.Max(peak, v)
	}

	out := make([]float32, len(logits))
	var sum float32
	for i, v := range logits {
		out[i] = math32.Exp(v - peak)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
