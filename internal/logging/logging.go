// Package logging builds the logrus loggers used by the pipelines.
package logging

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/bulkdump/pkg/types"
)

// Supported formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Configuration errors.
var (
	ErrUnknownFormat = errors.New("unknown log format")
	ErrUnknownLevel  = errors.New("unknown log level")
)

// New creates a logger writing to out with the configured level and
// format. Empty values select info and text.
func New(cfg types.LogConfig, out io.Writer) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(out)

	level := logrus.InfoLevel
	if cfg.Level != "" {
		l, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrUnknownLevel, cfg.Level)
		}
		level = l
	}
	logger.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "", FormatText:
		logger.SetFormatter(&logrus.TextFormatter{
			DisableColors: true,
			FullTimestamp: true,
		})
	case FormatJSON:
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, cfg.Format)
	}
	return logger, nil
}

// Discard returns a logger that writes nothing.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// OrDiscard returns logger, or a discarding logger when logger is nil.
func OrDiscard(logger logrus.FieldLogger) logrus.FieldLogger {
	if logger == nil {
		return Discard()
	}
	return logger
}

// NewRunID generates an identifier for one invocation. UUID v7 keeps run
// IDs sortable by start time.
func NewRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// WithRun returns logger scoped to a new run ID, and the ID.
func WithRun(logger logrus.FieldLogger) (logrus.FieldLogger, string) {
	id := NewRunID()
	return OrDiscard(logger).WithField("run_id", id), id
}
