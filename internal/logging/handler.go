package logging

import (
	"io"
	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config selects the log format and sinks.
type Config struct {
	// JSON switches from text to JSON records.
	JSON bool
	// Level is the minimum level that is logged.
	Level slog.Level
	// File is an optional log file path. The file is rotated by size and old files are compressed.
	File string
	// MaxSizeMB is the size in megabytes after which File is rotated.
	MaxSizeMB int
}

// NewHandler builds the application handler writing to stdout and, when cfg.File is set, also to the rotating file.
// The result is wrapped in a [ContextHandler].
//
// The returned closer flushes and closes the log file, it is a no-op without one.
func NewHandler(stdout io.Writer, cfg Config) (*ContextHandler, io.Closer) {
	var (
		w      = stdout
		closer io.Closer
	)
	if cfg.File != "" {
		rotating := &lumberjack.Logger{
			Filename:  cfg.File,
			MaxSize:   cfg.MaxSizeMB,
			LocalTime: false,
			Compress:  true,
		}
		w = io.MultiWriter(stdout, rotating)
		closer = rotating
	} else {
		closer = nopCloser{}
	}

	opts := &slog.HandlerOptions{
		AddSource:   false,
		Level:       cfg.Level,
		ReplaceAttr: nil,
	}
	var h slog.Handler
	if cfg.JSON {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return NewContextHandler(h), closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
