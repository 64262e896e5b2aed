// Package testhelpers routes application logs into test output.
package testhelpers

import (
	"io"
	"log/slog"

	"github.com/myrjola/stride/internal/logging"
)

// NewLogger returns a debug level text logger writing to logSink, usually a [Writer].
func NewLogger(logSink io.Writer) *slog.Logger {
	// Without a file the closer has nothing to release.
	handler, _ := logging.NewHandler(logSink, logging.Config{
		JSON:      false,
		Level:     slog.LevelDebug,
		File:      "",
		MaxSizeMB: 0,
	})
	return slog.New(handler)
}
