// Package util - Logging and file loading helpers shared by the CLI and server.
package util

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Log formats accepted by NewLogger.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// NewLogger builds the process logger.
//
// Arguments:
//   - level: A logrus level name (debug, info, warn, error...).
//   - format: LogFormatText or LogFormatJSON.
//
// Returns:
//   - *logrus.Logger: A logger writing to stderr.
//   - error: An error if the level or format is unknown.
//
// @example
// logger, err := util.NewLogger("info", util.LogFormatText)
// log := logger.WithField("component", "server")
func NewLogger(level, format string) (*logrus.Logger, error) {
	return newLogger(os.Stderr, level, format)
}

func newLogger(out io.Writer, level, format string) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid log level %q", level)
	}

	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(lvl)

	switch format {
	case LogFormatJSON:
		logger.SetFormatter(&logrus.JSONFormatter{})
	case LogFormatText, "":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, errors.Errorf("invalid log format %q", format)
	}

	return logger, nil
}
