// Package attendance turns a photographed register into a structured report.
//
// The Processor runs grid detection, routes every cell to the text recognizer
// or the mark classifier by its column, and assembles the Report served by the
// HTTP API and printed by the CLI.
package attendance

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/nvr-ai/go-register/classify"
	"github.com/nvr-ai/go-register/grid"
	"github.com/nvr-ai/go-register/images"
	"github.com/nvr-ai/go-register/ocr"
	"github.com/nvr-ai/go-register/profiler"
	"github.com/nvr-ai/go-register/router"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Options tunes report assembly.
type Options struct {
	// Workers bounds concurrent cell recognition (default: GOMAXPROCS).
	Workers int `json:"workers" yaml:"workers"`
	// IncludeImage embeds the annotated image as base64 JPEG in the report.
	IncludeImage bool `json:"include_image" yaml:"include_image"`
}

// Components are the collaborators a Processor drives. Only Detector is required.
type Components struct {
	Detector   *grid.Detector
	Router     router.Router
	Recognizer ocr.Recognizer
	Classifier classify.Classifier
	Profiler   *profiler.RuntimeProfiler
	Logger     *logrus.Entry
}

// Processor builds reports. It is safe for concurrent use when its
// collaborators are.
type Processor struct {
	detector   *grid.Detector
	router     router.Router
	recognizer ocr.Recognizer
	classifier classify.Classifier
	profiler   *profiler.RuntimeProfiler
	log        *logrus.Entry
	opts       Options

	inFlight  atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
}

// NewProcessor creates a new report processor.
//
// Missing collaborators fall back to router.Default, ocr.Nop and
// classify.NewDensity.
//
// Arguments:
//   - c: The collaborators. Detector must be set.
//   - opts: Report options.
//
// Returns:
//   - *Processor: The processor.
//   - error: An error if no detector is given.
func NewProcessor(c Components, opts Options) (*Processor, error) {
	if c.Detector == nil {
		return nil, errors.New("attendance processor requires a grid detector")
	}
	if c.Router == nil {
		c.Router = router.Default()
	}
	if c.Recognizer == nil {
		c.Recognizer = ocr.Nop{}
	}
	if c.Classifier == nil {
		c.Classifier = classify.NewDensity()
	}
	if c.Logger == nil {
		c.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}

	return &Processor{
		detector:   c.Detector,
		router:     c.Router,
		recognizer: c.Recognizer,
		classifier: c.Classifier,
		profiler:   c.Profiler,
		log:        c.Logger.WithField("component", "attendance"),
		opts:       opts,
	}, nil
}

// Process decodes an uploaded register image, recovers its cells and reads
// each one.
//
// Detection failures are returned unchanged so callers can tell
// *common.InvalidImageError, *common.NoGridFoundError and
// *common.DegenerateGridError apart. A failure on any cell fails the whole
// report.
//
// Arguments:
//   - ctx: Cancels outstanding cell work.
//   - filename: Echoed in the report.
//   - data: The encoded image.
//
// Returns:
//   - *Report: The success report.
//   - error: Detection, recognition, classification or cancellation errors.
func (p *Processor) Process(ctx context.Context, filename string, data []byte) (*Report, error) {
	report, result, err := p.ProcessDetailed(ctx, filename, data)
	if err != nil {
		return nil, err
	}
	result.Close()
	return report, nil
}

// ProcessDetailed is Process that also hands back the detection result, so
// callers can persist the annotated image and cell crops. The caller owns the
// result and must Close it.
//
// @example
// report, result, err := processor.ProcessDetailed(ctx, "week1.jpg", data)
// if err != nil { ... }
// defer result.Close()
func (p *Processor) ProcessDetailed(ctx context.Context, filename string, data []byte) (*Report, *grid.Result, error) {
	p.inFlight.Add(1)
	defer p.inFlight.Add(-1)

	start := time.Now()
	stop := p.profiler.StartOperation(profiler.StageProcess)
	defer stop()

	log := p.log.WithField("filename", filename)

	report, result, err := p.process(ctx, filename, data, start)
	if err != nil {
		p.failed.Add(1)
		log.WithError(err).Warn("register processing failed")
		return nil, nil, err
	}

	p.processed.Add(1)
	log.WithFields(logrus.Fields{
		"cells":       report.Metadata.TotalCellsDetected,
		"rows":        report.Metadata.Rows,
		"columns":     report.Metadata.Columns,
		"format":      report.Metadata.ImageFormat,
		"duration_ms": report.Metadata.DurationMS,
	}).Info("register processed")
	return report, result, nil
}

func (p *Processor) process(ctx context.Context, filename string, data []byte, start time.Time) (report *Report, result *grid.Result, err error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	result, err = p.detector.DetectBytes(data)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		if err != nil {
			result.Close()
			result = nil
		}
	}()

	entries := make([]Entry, len(result.Cells))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for i := range result.Cells {
		g.Go(func() error {
			entry, err := p.readCell(gctx, i, result.Cells[i])
			if err != nil {
				return errors.Wrapf(err, "cell %d %s", i, result.Cells[i].Box)
			}
			entries[i] = entry
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return nil, nil, err
	}

	report = &Report{
		Status:   StatusSuccess,
		Message:  SuccessMessage,
		Filename: filename,
		Metadata: Metadata{
			TotalCellsDetected: len(result.Cells),
			Rows:               result.Rows,
			Columns:            result.Columns,
			ImageFormat:        string(result.Format),
			ImageWidth:         result.Width,
			ImageHeight:        result.Height,
		},
		ExtractedData: entries,
	}
	if p.opts.IncludeImage {
		encoded, encErr := images.EncodeBase64JPEG(result.Annotated)
		if encErr != nil {
			err = errors.Wrap(encErr, "encoding annotated image")
			return nil, nil, err
		}
		report.ProcessedImageB64 = encoded
	}
	report.Metadata.DurationMS = time.Since(start).Milliseconds()

	return report, result, nil
}

// readCell routes one cell to the recognizer or the classifier.
func (p *Processor) readCell(ctx context.Context, index int, cell grid.Cell) (Entry, error) {
	entry := Entry{BBox: cell.Box, Type: p.router.Route(index)}

	switch entry.Type {
	case router.KindText:
		stop := p.profiler.StartOperation(profiler.StageRecognize)
		res, err := p.recognizer.Recognize(ctx, cell.Image)
		stop()
		if err != nil {
			return Entry{}, errors.Wrap(err, "recognizing text")
		}
		entry.Value, entry.Confidence = res.Text, res.Confidence
	default:
		stop := p.profiler.StartOperation(profiler.StageClassify)
		res, err := p.classifier.Classify(ctx, cell.Image)
		stop()
		if err != nil {
			return Entry{}, errors.Wrap(err, "classifying mark")
		}
		entry.Value, entry.Confidence = string(res.Label), res.Confidence
	}

	return entry, nil
}

// CollectMetrics implements profiler.MetricsCollector.
func (p *Processor) CollectMetrics() map[string]float64 {
	return map[string]float64{
		"requests_in_flight": float64(p.inFlight.Load()),
		"requests_processed": float64(p.processed.Load()),
		"requests_failed":    float64(p.failed.Load()),
	}
}
