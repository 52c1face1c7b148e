package classify

import (
	"context"
	"image"
	"path/filepath"
	"testing"

	"github.com/nvr-ai/go-register/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

// inkedCell returns a 100x100 white cell whose left share of columns is black.
func inkedCell(share float64) gocv.Mat {
	cell := gocv.NewMatWithSizeFromScalar(test.Paper, 100, 100, gocv.MatTypeCV8UC3)
	test.FillRect(&cell, image.Rect(0, 0, int(share*100), 100), test.Ink)
	return cell
}

func TestPreprocess(t *testing.T) {
	cell := inkedCell(0.5)
	defer cell.Close()

	pixels, err := Preprocess(cell)
	require.NoError(t, err)
	require.Len(t, pixels, InputSize*InputSize)

	assert.InDelta(t, 0, pixels[0], 0.01, "top-left is ink")
	assert.InDelta(t, 1, pixels[InputSize-1], 0.01, "top-right is paper")
	for _, p := range pixels {
		assert.True(t, p >= 0 && p <= 1)
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(cell, &gray, gocv.ColorBGRToGray)
	fromGray, err := Preprocess(gray)
	require.NoError(t, err)
	assert.Equal(t, pixels, fromGray)
}

func TestPreprocessEmpty(t *testing.T) {
	empty := gocv.NewMat()
	defer empty.Close()

	_, err := Preprocess(empty)
	assert.ErrorIs(t, err, ErrEmptyCell)
}

func TestDensityClassify(t *testing.T) {
	testCases := []struct {
		name       string
		share      float64
		label      Label
		confidence float64
	}{
		{"blank", 0, LabelBlank, 0.90},
		{"faint speck", 0.02, LabelBlank, 0.90},
		{"small mark", 0.15, LabelAbsent, 0.40},
		{"heavy mark", 0.5, LabelPresent, 0.60},
	}

	d := NewDensity()
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cell := inkedCell(tc.share)
			defer cell.Close()

			result, err := d.Classify(context.Background(), cell)
			require.NoError(t, err)
			assert.Equal(t, tc.label, result.Label)
			assert.Equal(t, tc.confidence, result.Confidence)
		})
	}
}

func TestDensityThresholdBoundaries(t *testing.T) {
	d := NewDensity()
	assert.Equal(t, LabelAbsent, d.classify(0.05).Label)
	assert.Equal(t, LabelAbsent, d.classify(0.30).Label)
	assert.Equal(t, LabelPresent, d.classify(0.3001).Label)
	assert.Equal(t, LabelBlank, d.classify(0.0499).Label)
}

func TestDensityCancelled(t *testing.T) {
	cell := inkedCell(0)
	defer cell.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewDensity().Classify(ctx, cell)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInkRatio(t *testing.T) {
	assert.Equal(t, 0.0, InkRatio(nil, 0.5))
	assert.Equal(t, 0.5, InkRatio([]float32{0, 0.49, 0.5, 1}, 0.5))
}

func TestSoftmax(t *testing.T) {
	probs := Softmax([]float32{1, 1, 1})
	for _, p := range probs {
		assert.InDelta(t, 1.0/3, p, 1e-6)
	}

	probs = Softmax([]float32{1000, 0, -1000})
	assert.InDelta(t, 1, probs[0], 1e-6, "large logits stay finite")

	var sum float32
	for _, p := range Softmax([]float32{0.3, -2, 4.5}) {
		sum += p
	}
	assert.InDelta(t, 1, sum, 1e-6)
	assert.Nil(t, Softmax(nil))
}

func TestFromLogits(t *testing.T) {
	testCases := []struct {
		logits []float32
		want   Label
	}{
		{[]float32{3, 1, 0}, LabelPresent},
		{[]float32{0, 2, 1}, LabelAbsent},
		{[]float32{-1, -1, 5}, LabelBlank},
		{[]float32{2, 2, 0}, LabelPresent},
	}
	for _, tc := range testCases {
		result, err := FromLogits(tc.logits)
		require.NoError(t, err)
		assert.Equal(t, tc.want, result.Label, "logits %v", tc.logits)
		assert.True(t, result.Confidence > 0 && result.Confidence <= 1)
	}

	result, err := FromLogits([]float32{0, 0, 0})
	require.NoError(t, err)
	assert.InDelta(t, 1.0/3, result.Confidence, 1e-6)

	_, err = FromLogits([]float32{1, 2})
	assert.Error(t, err)
}

func TestNewONNXMissingModel(t *testing.T) {
	classifier, err := NewONNX(ONNXOptions{ModelPath: filepath.Join(t.TempDir(), "marks.onnx")})
	assert.Nil(t, classifier)
	assert.Error(t, err)
}
