// Package config - YAML configuration for the register service and CLI.
package config

import (
	"os"
	"time"

	"github.com/nvr-ai/go-register/attendance"
	"github.com/nvr-ai/go-register/classify"
	"github.com/nvr-ai/go-register/grid"
	"github.com/nvr-ai/go-register/ocr"
	"github.com/nvr-ai/go-register/router"
	"github.com/nvr-ai/go-register/util"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Classifier kinds.
const (
	ClassifierDensity = "density"
	ClassifierONNX    = "onnx"
)

// Config is the complete service configuration.
type Config struct {
	Log        LogConfig          `json:"log" yaml:"log"`
	Server     ServerConfig       `json:"server" yaml:"server"`
	Grid       grid.Config        `json:"grid" yaml:"grid"`
	Router     router.Modulo      `json:"router" yaml:"router"`
	OCR        OCRConfig          `json:"ocr" yaml:"ocr"`
	Classifier ClassifierConfig   `json:"classifier" yaml:"classifier"`
	Processor  attendance.Options `json:"processor" yaml:"processor"`
	Profiler   ProfilerConfig     `json:"profiler" yaml:"profiler"`
}

// LogConfig selects the logrus level and output format.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// ServerConfig configures the HTTP transport.
type ServerConfig struct {
	Addr            string        `json:"addr" yaml:"addr"`
	AllowedOrigins  []string      `json:"allowed_origins" yaml:"allowed_origins"`
	MaxUploadBytes  int64         `json:"max_upload_bytes" yaml:"max_upload_bytes"`
	RequestTimeout  time.Duration `json:"request_timeout" yaml:"request_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// OCRConfig configures the text recognizer.
type OCRConfig struct {
	// Enabled tries Tesseract first and falls back to no recognition when it is unavailable.
	Enabled     bool `json:"enabled" yaml:"enabled"`
	ocr.Options `yaml:",inline"`
}

// ClassifierConfig selects and configures the mark classifier.
type ClassifierConfig struct {
	Kind    string               `json:"kind" yaml:"kind"`
	Density classify.Density     `json:"density" yaml:"density"`
	ONNX    classify.ONNXOptions `json:"onnx" yaml:"onnx"`
}

// ProfilerConfig configures the periodic runtime report.
type ProfilerConfig struct {
	ReportInterval time.Duration `json:"report_interval" yaml:"report_interval"`
	MaxSamples     int           `json:"max_samples" yaml:"max_samples"`
}

// Default returns the built-in configuration.
//
// @example
// cfg := config.Default()
// cfg.Server.Addr = ":9000"
func Default() Config {
	return Config{
		Log: LogConfig{Level: "info", Format: util.LogFormatText},
		Server: ServerConfig{
			Addr:            ":8000",
			AllowedOrigins:  []string{"http://localhost:3000"},
			MaxUploadBytes:  20 << 20,
			RequestTimeout:  60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Grid:   grid.DefaultConfig(),
		Router: router.Default(),
		OCR: OCRConfig{
			Enabled: true,
			Options: ocr.DefaultOptions(),
		},
		Classifier: ClassifierConfig{
			Kind:    ClassifierDensity,
			Density: classify.NewDensity(),
		},
		Profiler: ProfilerConfig{ReportInterval: time.Minute, MaxSamples: 1000},
	}
}

// Load reads a YAML file over the defaults and validates the result.
//
// Arguments:
//   - path: The YAML file. An empty path returns Default.
//
// Returns:
//   - Config: The merged configuration.
//   - error: An error if the file cannot be read or parsed, or a value is invalid.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "reading config %s", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "parsing config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Wrapf(err, "invalid config %s", path)
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if err := c.Grid.Validate(); err != nil {
		return errors.Wrap(err, "grid")
	}
	if err := c.Router.Validate(); err != nil {
		return err
	}

	switch c.Classifier.Kind {
	case ClassifierDensity:
	case ClassifierONNX:
		if c.Classifier.ONNX.ModelPath == "" {
			return errors.New("classifier.onnx.model_path is required for the onnx classifier")
		}
	default:
		return errors.Errorf("classifier.kind must be %q or %q, got %q", ClassifierDensity, ClassifierONNX, c.Classifier.Kind)
	}

	switch {
	case c.Server.MaxUploadBytes <= 0:
		return errors.New("server.max_upload_bytes must be positive")
	case c.Server.RequestTimeout < 0 || c.Server.ShutdownTimeout < 0:
		return errors.New("server timeouts must not be negative")
	case c.Processor.Workers < 0:
		return errors.New("processor.workers must not be negative")
	}
	return nil
}
