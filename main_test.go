package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/nvr-ai/go-register/attendance"
	"github.com/nvr-ai/go-register/config"
	"github.com/nvr-ai/go-register/images"
	"github.com/nvr-ai/go-register/profiler"
	"github.com/nvr-ai/go-register/test"
	"github.com/nvr-ai/go-register/util"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRegister(t *testing.T, dir, name string, rows int) string {
	t.Helper()
	gen := test.NewRegisterGenerator(600, 400)
	frame := gen.Grid(rows, 5)
	defer frame.Close()

	data, err := images.Encode(images.FormatPNG, frame)
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestValidateInputFlags(t *testing.T) {
	testCases := []struct {
		name    string
		opts    options
		wantErr bool
	}{
		{"nothing", options{}, true},
		{"image", options{imagePath: "week1.jpg"}, false},
		{"dir", options{dirPath: "scans"}, false},
		{"serve", options{serve: true}, false},
		{"image and serve", options{imagePath: "week1.jpg", serve: true}, true},
		{"image and dir", options{imagePath: "week1.jpg", dirPath: "scans"}, true},
		{"unsupported extension", options{imagePath: "week1.gif"}, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateInputFlags(tc.opts)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBuildProcessorFallsBackWithoutOCR(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	cfg := config.Default()

	processor, cleanup, err := buildProcessor(cfg, profiler.NewRuntimeProfiler(profiler.ProfilingOptions{}), logrus.NewEntry(logger))
	require.NoError(t, err)
	defer cleanup()
	assert.NotNil(t, processor)

	if entry := hook.LastEntry(); entry != nil {
		assert.Equal(t, logrus.WarnLevel, entry.Level)
	}
}

func TestBuildProcessorRejectsMissingModel(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	cfg := config.Default()
	cfg.OCR.Enabled = false
	cfg.Classifier.Kind = config.ClassifierONNX
	cfg.Classifier.ONNX.ModelPath = filepath.Join(t.TempDir(), "missing.onnx")

	_, _, err := buildProcessor(cfg, nil, logrus.NewEntry(logger))
	assert.Error(t, err)
}

func TestProcessFileWritesOutputs(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	path := writeRegister(t, in, "week1.png", 2)
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	logger, _ := logtest.NewNullLogger()
	cfg := config.Default()
	cfg.OCR.Enabled = false
	processor, cleanup, err := buildProcessor(cfg, nil, logrus.NewEntry(logger))
	require.NoError(t, err)
	defer cleanup()

	var stdout bytes.Buffer
	file := util.ImageFile{Path: path, Name: "week1.png", Data: data}
	require.NoError(t, processFile(context.Background(), processor, file, out, &stdout))

	var report attendance.Report
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &report))
	assert.Equal(t, "week1.png", report.Filename)
	assert.Equal(t, 10, report.Metadata.TotalCellsDetected)

	written, err := os.ReadDir(filepath.Join(out, "week1"))
	require.NoError(t, err)
	assert.Len(t, written, 11)
	assert.FileExists(t, filepath.Join(out, "week1", annotatedName))
	assert.FileExists(t, filepath.Join(out, "week1", "cell_000.png"))
	assert.FileExists(t, filepath.Join(out, "week1", "cell_009.png"))
}

func TestRunDirectoryReportsFailures(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeRegister(t, in, "a.png", 1)
	require.NoError(t, os.WriteFile(filepath.Join(in, "b.png"), []byte("not an image"), 0o600))

	configPath := filepath.Join(t.TempDir(), "register.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("log:\n  level: error\nocr:\n  enabled: false\n"), 0o600))

	var stdout bytes.Buffer
	err := run(options{configPath: configPath, dirPath: in, outputDir: out, annotate: true}, &stdout)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 registers failed")

	dec := json.NewDecoder(&stdout)
	var first, second map[string]any
	require.NoError(t, dec.Decode(&first))
	require.NoError(t, dec.Decode(&second))
	assert.Equal(t, "success", first["status"])
	assert.Equal(t, "error", second["status"])
	assert.DirExists(t, filepath.Join(out, "a"))
}
