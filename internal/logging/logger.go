// Package logging builds the structured logger shared by the crawler, renderers and service.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/phuslu/log"

	"github.com/spider-crawler/sitecrawl/internal/config"
)

// New creates a logger from the log configuration, writing to stderr.
func New(cfg config.LogConfig) *log.Logger {
	return NewWithWriter(cfg, os.Stderr)
}

// NewWithWriter creates a logger writing to w.
func NewWithWriter(cfg config.LogConfig, w io.Writer) *log.Logger {
	var writer log.Writer
	switch strings.ToLower(cfg.Format) {
	case "json":
		writer = &log.IOWriter{Writer: w}
	default:
		writer = &log.ConsoleWriter{
			Writer:         w,
			ColorOutput:    w == os.Stderr || w == os.Stdout,
			QuoteString:    true,
			EndWithMessage: true,
		}
	}

	return &log.Logger{
		Level:      ParseLevel(cfg.Level),
		TimeFormat: "15:04:05.000",
		Writer:     writer,
	}
}

// Discard returns a logger that drops everything, for tests.
func Discard() *log.Logger {
	return &log.Logger{
		Level:  log.ErrorLevel,
		Writer: &log.IOWriter{Writer: io.Discard},
	}
}

// ParseLevel converts a level name to a log level, defaulting to info.
func ParseLevel(level string) log.Level {
	switch strings.ToLower(level) {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}
