package attendance

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"

	"github.com/nvr-ai/go-register/classify"
	"github.com/nvr-ai/go-register/common"
	"github.com/nvr-ai/go-register/grid"
	"github.com/nvr-ai/go-register/images"
	"github.com/nvr-ai/go-register/ocr"
	"github.com/nvr-ai/go-register/profiler"
	"github.com/nvr-ai/go-register/router"
	"github.com/nvr-ai/go-register/test"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

type fakeRecognizer struct {
	calls atomic.Int64
	err   error
}

func (f *fakeRecognizer) Recognize(ctx context.Context, cell gocv.Mat) (ocr.Result, error) {
	f.calls.Add(1)
	if f.err != nil {
		return ocr.Result{}, f.err
	}
	return ocr.Result{Text: "Ravi Kumar", Confidence: 0.9}, nil
}

type fakeClassifier struct {
	calls atomic.Int64
	err   error
}

func (f *fakeClassifier) Classify(ctx context.Context, cell gocv.Mat) (classify.Result, error) {
	f.calls.Add(1)
	if f.err != nil {
		return classify.Result{}, f.err
	}
	return classify.Result{Label: classify.LabelPresent, Confidence: 0.75}, nil
}

// registerPNG renders a rows x 5 register and encodes it as PNG.
func registerPNG(t *testing.T, rows int) []byte {
	t.Helper()
	gen := test.NewRegisterGenerator(600, 400)
	frame := gen.Grid(rows, 5)
	defer frame.Close()

	data, err := images.Encode(images.FormatPNG, frame)
	require.NoError(t, err)
	return data
}

func newTestProcessor(t *testing.T, rec ocr.Recognizer, cls classify.Classifier, opts Options) *Processor {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	p, err := NewProcessor(Components{
		Detector:   grid.NewDetector(grid.DefaultConfig()),
		Router:     router.Default(),
		Recognizer: rec,
		Classifier: cls,
		Logger:     logrus.NewEntry(logger),
	}, opts)
	require.NoError(t, err)
	return p
}

func TestProcessRoutesCells(t *testing.T) {
	rec, cls := &fakeRecognizer{}, &fakeClassifier{}
	p := newTestProcessor(t, rec, cls, Options{Workers: 3})

	report, err := p.Process(context.Background(), "register.png", registerPNG(t, 2))
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, report.Status)
	assert.Equal(t, SuccessMessage, report.Message)
	assert.Equal(t, "register.png", report.Filename)
	assert.Equal(t, 10, report.Metadata.TotalCellsDetected)
	assert.Equal(t, 2, report.Metadata.Rows)
	assert.Equal(t, 5, report.Metadata.Columns)
	assert.Equal(t, "png", report.Metadata.ImageFormat)
	assert.Equal(t, 600, report.Metadata.ImageWidth)
	assert.Equal(t, 400, report.Metadata.ImageHeight)
	assert.Empty(t, report.ProcessedImageB64)

	require.Len(t, report.ExtractedData, 10)
	for i, entry := range report.ExtractedData {
		if i%5 < 2 {
			assert.Equal(t, router.KindText, entry.Type, "entry %d", i)
			assert.Equal(t, "Ravi Kumar", entry.Value)
			assert.Equal(t, 0.9, entry.Confidence)
		} else {
			assert.Equal(t, router.KindMark, entry.Type, "entry %d", i)
			assert.Equal(t, "P", entry.Value)
			assert.Equal(t, 0.75, entry.Confidence)
		}
		if i > 0 && i%5 != 0 {
			assert.Greater(t, entry.BBox.X, report.ExtractedData[i-1].BBox.X)
		}
	}
	assert.EqualValues(t, 4, rec.calls.Load())
	assert.EqualValues(t, 6, cls.calls.Load())
}

func TestProcessDefaultsToHeuristics(t *testing.T) {
	p := newTestProcessor(t, nil, nil, Options{IncludeImage: true})

	report, err := p.Process(context.Background(), "register.png", registerPNG(t, 1))
	require.NoError(t, err)
	require.Len(t, report.ExtractedData, 5)

	// Empty generated cells: no text and blank marks.
	for i, entry := range report.ExtractedData {
		if i < 2 {
			assert.Equal(t, "", entry.Value)
		} else {
			assert.Equal(t, string(classify.LabelBlank), entry.Value)
		}
	}
	assert.NotEmpty(t, report.ProcessedImageB64)
}

func TestProcessDetectionErrors(t *testing.T) {
	p := newTestProcessor(t, &fakeRecognizer{}, &fakeClassifier{}, Options{})

	blank := gocv.NewMatWithSizeFromScalar(test.Paper, 300, 400, gocv.MatTypeCV8UC3)
	defer blank.Close()
	data, err := images.Encode(images.FormatPNG, blank)
	require.NoError(t, err)

	report, err := p.Process(context.Background(), "blank.png", data)
	assert.Nil(t, report)
	var noGrid *common.NoGridFoundError
	assert.True(t, errors.As(err, &noGrid))

	_, err = p.Process(context.Background(), "junk.png", []byte("junk"))
	var invalid *common.InvalidImageError
	assert.True(t, errors.As(err, &invalid))

	metrics := p.CollectMetrics()
	assert.Equal(t, 2.0, metrics["requests_failed"])
	assert.Equal(t, 0.0, metrics["requests_processed"])
	assert.Equal(t, 0.0, metrics["requests_in_flight"])
}

func TestProcessCollaboratorError(t *testing.T) {
	boom := errors.New("model exploded")
	p := newTestProcessor(t, &fakeRecognizer{}, &fakeClassifier{err: boom}, Options{Workers: 2})

	report, err := p.Process(context.Background(), "register.png", registerPNG(t, 2))
	assert.Nil(t, report)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "classifying mark")
}

func TestProcessCancelled(t *testing.T) {
	p := newTestProcessor(t, &fakeRecognizer{}, &fakeClassifier{}, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Process(ctx, "register.png", registerPNG(t, 1))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcessRecordsStages(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	rp := profiler.NewRuntimeProfiler(profiler.ProfilingOptions{})
	detector := grid.NewDetector(grid.DefaultConfig())
	detector.Profiler = rp

	p, err := NewProcessor(Components{
		Detector:   detector,
		Recognizer: &fakeRecognizer{},
		Classifier: &fakeClassifier{},
		Profiler:   rp,
		Logger:     logrus.NewEntry(logger),
	}, Options{})
	require.NoError(t, err)

	_, err = p.Process(context.Background(), "register.png", registerPNG(t, 1))
	require.NoError(t, err)

	names := map[string]int64{}
	for _, op := range rp.GetCurrentStats().Operations {
		names[op.Name] = op.Count
	}
	assert.EqualValues(t, 1, names[profiler.StageProcess])
	assert.EqualValues(t, 2, names[profiler.StageRecognize])
	assert.EqualValues(t, 3, names[profiler.StageClassify])
	assert.EqualValues(t, 1, names[profiler.StageCells])
	assert.Equal(t, 1.0, p.CollectMetrics()["requests_processed"])
}

func TestNewProcessorRequiresDetector(t *testing.T) {
	_, err := NewProcessor(Components{}, Options{})
	assert.Error(t, err)
}

func TestReportJSON(t *testing.T) {
	report := Report{
		Status:   StatusSuccess,
		Message:  SuccessMessage,
		Filename: "a.jpg",
		Metadata: Metadata{TotalCellsDetected: 1, Rows: 1, Columns: 1, DurationMS: 12, ImageFormat: "jpeg", ImageWidth: 640, ImageHeight: 480},
		ExtractedData: []Entry{
			{BBox: common.BoundingBox{X: 1, Y: 2, Width: 3, Height: 4}, Type: router.KindMark, Value: "A", Confidence: 0.4},
		},
	}

	data, err := json.Marshal(report)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"status": "success",
		"message": "Image processed successfully through CV pipeline.",
		"filename": "a.jpg",
		"metadata": {
			"total_cells_detected": 1, "rows": 1, "columns": 1, "duration_ms": 12,
			"image_format": "jpeg", "image_width": 640, "image_height": 480
		},
		"extracted_data": [{"bbox": [1, 2, 3, 4], "type": "mark", "value": "A", "confidence": 0.4}]
	}`, string(data))
}

func TestNewErrorReport(t *testing.T) {
	report := NewErrorReport(&common.NoGridFoundError{Candidates: 1, Width: 400, Height: 300})

	data, err := json.Marshal(report)
	require.NoError(t, err)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, StatusError, decoded["status"])
	assert.Contains(t, decoded["message"], "Grid Detection Failed: no grid found in 400x300 image")
}

func TestProcessDetailedKeepsResult(t *testing.T) {
	p := newTestProcessor(t, &fakeRecognizer{}, &fakeClassifier{}, Options{})

	report, result, err := p.ProcessDetailed(context.Background(), "register.png", registerPNG(t, 2))
	require.NoError(t, err)
	defer result.Close()

	require.Len(t, result.Cells, len(report.ExtractedData))
	for i, cell := range result.Cells {
		assert.Equal(t, report.ExtractedData[i].BBox, cell.Box)
		assert.Equal(t, cell.Box.Width, cell.Image.Cols())
		assert.Equal(t, cell.Box.Height, cell.Image.Rows())
	}
	assert.Equal(t, 600, result.Annotated.Cols())
	assert.Equal(t, 400, result.Annotated.Rows())

	_, result, err = p.ProcessDetailed(context.Background(), "blank.png", []byte("not an image"))
	assert.Error(t, err)
	assert.Nil(t, result)
	assert.EqualValues(t, 1, p.CollectMetrics()["requests_failed"])
}
