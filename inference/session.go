// Package inference - ONNX Runtime sessions for the register mark models.
package inference

import (
	"os"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

var envMu sync.Mutex

// InitializeEnvironment points ONNX Runtime at the shared library and
// initializes the native environment. It is safe to call more than once;
// only the first successful call has an effect.
//
// Arguments:
//   - libPath: Path to the onnxruntime shared library. Empty uses GetSharedLibPath.
//
// Returns:
//   - error: An error if the library is missing or fails to load.
func InitializeEnvironment(libPath string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	if libPath == "" {
		libPath = GetSharedLibPath()
	}
	if _, err := os.Stat(libPath); err != nil {
		return errors.Wrapf(err, "ONNX Runtime library not found at %s", libPath)
	}

	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return errors.Wrap(err, "initializing ONNX Runtime environment")
	}
	return nil
}

// SessionOptions describes a single-input, single-output float32 model.
type SessionOptions struct {
	// ModelPath is the .onnx file to load.
	ModelPath string `json:"model_path" yaml:"model_path"`
	// LibraryPath overrides the onnxruntime shared library location.
	LibraryPath string `json:"library_path" yaml:"library_path"`
	// InputName and OutputName are the graph node names.
	InputName  string `json:"input_name" yaml:"input_name"`
	OutputName string `json:"output_name" yaml:"output_name"`
	// InputShape and OutputShape are the fixed tensor shapes, batch first.
	InputShape  []int64 `json:"input_shape" yaml:"input_shape"`
	OutputShape []int64 `json:"output_shape" yaml:"output_shape"`
	// IntraOpThreads bounds per-node parallelism (0 lets ONNX Runtime decide).
	IntraOpThreads int `json:"intra_op_threads" yaml:"intra_op_threads"`
}

// Validate reports missing or malformed options.
func (o SessionOptions) Validate() error {
	switch {
	case o.ModelPath == "":
		return errors.New("model path is required")
	case o.InputName == "" || o.OutputName == "":
		return errors.New("input and output node names are required")
	case len(o.InputShape) == 0 || len(o.OutputShape) == 0:
		return errors.New("input and output shapes are required")
	}
	for _, d := range append(append([]int64{}, o.InputShape...), o.OutputShape...) {
		if d <= 0 {
			return errors.Errorf("tensor dimensions must be positive, got %v / %v", o.InputShape, o.OutputShape)
		}
	}
	return nil
}

// Session represents a model session from the onnxruntime with preallocated
// input and output tensors.
//
// Run is serialized: the bound tensors are shared by every call.
type Session struct {
	mu      sync.Mutex
	Session *ort.AdvancedSession
	Input   *ort.Tensor[float32]
	Output  *ort.Tensor[float32]
}

// NewSession loads a model and binds its tensors.
//
// Arguments:
//   - opts: Model location, node names and shapes.
//
// Returns:
//   - *Session: The session. The caller must Close it.
//   - error: An error if the options are invalid, the runtime is unavailable, or the model fails to load.
func NewSession(opts SessionOptions) (*Session, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(opts.ModelPath); err != nil {
		return nil, errors.Wrapf(err, "model not found at %s", opts.ModelPath)
	}
	if err := InitializeEnvironment(opts.LibraryPath); err != nil {
		return nil, err
	}

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(opts.InputShape...))
	if err != nil {
		return nil, errors.Wrap(err, "creating input tensor")
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(opts.OutputShape...))
	if err != nil {
		input.Destroy()
		return nil, errors.Wrap(err, "creating output tensor")
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, errors.Wrap(err, "creating session options")
	}
	defer options.Destroy()

	options.SetIntraOpNumThreads(opts.IntraOpThreads)
	options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended)

	session, err := ort.NewAdvancedSession(
		opts.ModelPath,
		[]string{opts.InputName},
		[]string{opts.OutputName},
		[]ort.ArbitraryTensor{input},
		[]ort.ArbitraryTensor{output},
		options,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, errors.Wrapf(err, "loading model %s", opts.ModelPath)
	}

	return &Session{Session: session, Input: input, Output: output}, nil
}

// Run copies data into the input tensor, runs the model and returns a copy of
// the output tensor.
//
// Arguments:
//   - data: Exactly as many values as the input shape holds.
//
// Returns:
//   - []float32: The model output, owned by the caller.
//   - error: An error if the length mismatches or the run fails.
func (s *Session) Run(data []float32) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Session == nil {
		return nil, errors.New("session is closed")
	}
	in := s.Input.GetData()
	if len(data) != len(in) {
		return nil, errors.Errorf("input has %d values, model expects %d", len(data), len(in))
	}
	copy(in, data)

	if err := s.Session.Run(); err != nil {
		return nil, errors.Wrap(err, "running model")
	}

	out := s.Output.GetData()
	result := make([]float32, len(out))
	copy(result, out)
	return result, nil
}

// Close releases the resources associated with the Session.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Input != nil {
		s.Input.Destroy()
		s.Input = nil
	}
	if s.Output != nil {
		s.Output.Destroy()
		s.Output = nil
	}
	if s.Session != nil {
		s.Session.Destroy()
		s.Session = nil
	}
}
