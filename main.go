package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/nvr-ai/go-register/attendance"
	"github.com/nvr-ai/go-register/classify"
	"github.com/nvr-ai/go-register/config"
	"github.com/nvr-ai/go-register/grid"
	"github.com/nvr-ai/go-register/images"
	"github.com/nvr-ai/go-register/ocr"
	"github.com/nvr-ai/go-register/profiler"
	"github.com/nvr-ai/go-register/server"
	"github.com/nvr-ai/go-register/util"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

const (
	// DefaultOutputDir is where annotated registers and cell crops are written.
	DefaultOutputDir = "register_output"
	// annotatedName is the file name of the outlined register inside a per-image output directory.
	annotatedName = "annotated.png"
)

// options are the parsed command line flags.
type options struct {
	configPath string
	imagePath  string
	dirPath    string
	outputDir  string
	serve      bool
	addr       string
	annotate   bool
	logLevel   string
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "Path to a YAML config file (defaults are used when empty)")
	flag.StringVar(&opts.imagePath, "image", "", "Path to a register image (.jpg, .jpeg, .png, .bmp, .webp, .tiff)")
	flag.StringVar(&opts.dirPath, "dir", "", "Directory of register images to process")
	flag.StringVar(&opts.outputDir, "out", DefaultOutputDir, "Output directory for annotated images and cell crops")
	flag.BoolVar(&opts.serve, "serve", false, "Run the HTTP API")
	flag.StringVar(&opts.addr, "addr", "", "Listen address, overrides server.addr")
	flag.BoolVar(&opts.annotate, "annotate", true, "Draw cell outlines on the output image")
	flag.StringVar(&opts.logLevel, "log-level", "", "Log level, overrides log.level")
	flag.Parse()

	if err := run(opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func run(opts options, stdout io.Writer) error {
	if err := validateInputFlags(opts); err != nil {
		return err
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if opts.addr != "" {
		cfg.Server.Addr = opts.addr
	}
	cfg.Grid.Annotate = opts.annotate

	logger, err := util.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	log := logrus.NewEntry(logger)

	rp := profiler.NewRuntimeProfiler(profiler.ProfilingOptions{
		ReportInterval: cfg.Profiler.ReportInterval,
		MaxSamples:     cfg.Profiler.MaxSamples,
		Logger:         log,
	})

	processor, cleanup, err := buildProcessor(cfg, rp, log)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.serve {
		rp.AddMetricsCollector(processor)
		rp.Start()
		defer rp.Stop()
		return server.New(cfg.Server, processor, rp, log).ListenAndServe(ctx)
	}

	var files []util.ImageFile
	if opts.dirPath != "" {
		if files, err = util.LoadDirectoryImageFiles(opts.dirPath); err != nil {
			return err
		}
		if len(files) == 0 {
			return errors.Errorf("no images found in %s", opts.dirPath)
		}
	} else {
		data, err := os.ReadFile(opts.imagePath)
		if err != nil {
			return errors.Wrapf(err, "reading %s", opts.imagePath)
		}
		files = []util.ImageFile{{Path: opts.imagePath, Name: filepath.Base(opts.imagePath), Data: data}}
	}

	var failed int
	for _, file := range files {
		if err := processFile(ctx, processor, file, opts.outputDir, stdout); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failed++
			log.WithError(err).WithField("filename", file.Name).Error("register failed")
			writeReport(stdout, attendance.NewErrorReport(err))
		}
	}
	if failed > 0 {
		return errors.Errorf("%d of %d registers failed", failed, len(files))
	}
	return nil
}

// validateInputFlags checks that exactly one mode was selected.
func validateInputFlags(opts options) error {
	modes := 0
	for _, set := range []bool{opts.serve, opts.imagePath != "", opts.dirPath != ""} {
		if set {
			modes++
		}
	}
	switch {
	case modes == 0:
		return errors.New("one of -image, -dir or -serve is required")
	case modes > 1:
		return errors.New("-image, -dir and -serve are mutually exclusive")
	}
	if opts.imagePath != "" && !util.IsImageFile(opts.imagePath) {
		return errors.Errorf("unsupported image extension: %s", filepath.Ext(opts.imagePath))
	}
	return nil
}

// buildProcessor wires the detector, recognizer and classifier selected by cfg.
//
// Arguments:
//   - cfg: The loaded configuration.
//   - rp: Receives stage timings.
//   - log: The root logger.
//
// Returns:
//   - *attendance.Processor: The processor.
//   - func(): Releases the OCR and model sessions.
//   - error: An error if the classifier model cannot be loaded.
func buildProcessor(cfg config.Config, rp *profiler.RuntimeProfiler, log *logrus.Entry) (*attendance.Processor, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	detector := grid.NewDetector(cfg.Grid)
	detector.Profiler = rp

	var recognizer ocr.Recognizer = ocr.Nop{}
	if cfg.OCR.Enabled {
		tess, err := ocr.NewTesseract(cfg.OCR.Options)
		if err != nil {
			log.WithError(err).Warn("text recognition unavailable, text cells will be empty")
		} else {
			recognizer = tess
			closers = append(closers, func() { _ = tess.Close() })
		}
	}

	var classifier classify.Classifier = cfg.Classifier.Density
	if cfg.Classifier.Kind == config.ClassifierONNX {
		model, err := classify.NewONNX(cfg.Classifier.ONNX)
		if err != nil {
			cleanup()
			return nil, nil, errors.Wrap(err, "loading mark classifier")
		}
		classifier = model
		closers = append(closers, model.Close)
	}

	processor, err := attendance.NewProcessor(attendance.Components{
		Detector:   detector,
		Router:     cfg.Router,
		Recognizer: recognizer,
		Classifier: classifier,
		Profiler:   rp,
		Logger:     log,
	}, cfg.Processor)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return processor, cleanup, nil
}

// processFile runs one register through the processor, writes its annotated
// image and cell crops under outputDir/<name>/ and prints the report.
func processFile(ctx context.Context, processor *attendance.Processor, file util.ImageFile, outputDir string, stdout io.Writer) error {
	report, result, err := processor.ProcessDetailed(ctx, file.Name, file.Data)
	if err != nil {
		return err
	}
	defer result.Close()

	dir := filepath.Join(outputDir, strings.TrimSuffix(file.Name, filepath.Ext(file.Name)))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "creating %s", dir)
	}

	if err := writePNG(filepath.Join(dir, annotatedName), result.Annotated); err != nil {
		return err
	}
	for i, cell := range result.Cells {
		if err := writePNG(filepath.Join(dir, fmt.Sprintf("cell_%03d.png", i)), cell.Image); err != nil {
			return err
		}
	}

	writeReport(stdout, report)
	return nil
}

func writePNG(path string, mat gocv.Mat) error {
	data, err := images.Encode(images.FormatPNG, mat)
	if err != nil {
		return errors.Wrapf(err, "encoding %s", path)
	}
	return errors.Wrapf(os.WriteFile(path, data, 0o644), "writing %s", path)
}

func writeReport(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
