// Package flightrecorder keeps a rolling in-memory execution trace and dumps it to disk when a request misses its
// deadline, so that slow generation or database stalls can be inspected with go tool trace.
package flightrecorder

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/trace"
	"sync/atomic"
	"time"
)

const (
	defaultMinAge   = time.Minute
	defaultMaxBytes = 16 * 1024 * 1024
	defaultCooldown = 30 * time.Minute
)

// Recorder wraps a [trace.FlightRecorder] with rate-limited snapshots.
type Recorder struct {
	logger      *slog.Logger
	recorder    *trace.FlightRecorder
	dir         string
	cooldown    time.Duration
	now         func() time.Time
	lastCapture atomic.Int64
}

type Config struct {
	// Dir receives the trace files. It is created when missing.
	Dir string
	// MinAge and MaxBytes bound the rolling buffer. Zero values pick defaults.
	MinAge   time.Duration
	MaxBytes uint64
	// Cooldown is the minimum time between two snapshots.
	Cooldown time.Duration
}

// New creates a stopped recorder.
func New(logger *slog.Logger, cfg Config) (*Recorder, error) {
	if cfg.Dir == "" {
		return nil, errors.New("traces directory is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil { //nolint:mnd // rwxr-x---
		return nil, fmt.Errorf("create traces directory: %w", err)
	}

	return &Recorder{
		logger: logger,
		recorder: trace.NewFlightRecorder(trace.FlightRecorderConfig{
			MinAge:   cmp.Or(cfg.MinAge, defaultMinAge),
			MaxBytes: cmp.Or(cfg.MaxBytes, defaultMaxBytes),
		}),
		dir:         cfg.Dir,
		cooldown:    cmp.Or(cfg.Cooldown, defaultCooldown),
		now:         time.Now,
		lastCapture: atomic.Int64{},
	}, nil
}

// Start begins recording. Only one flight recorder may be active per process.
func (r *Recorder) Start(ctx context.Context) error {
	if err := r.recorder.Start(); err != nil {
		return fmt.Errorf("start flight recorder: %w", err)
	}
	r.logger.LogAttrs(ctx, slog.LevelInfo, "flight recorder started",
		slog.String("dir", r.dir), slog.Duration("cooldown", r.cooldown))
	return nil
}

// Stop ends recording.
func (r *Recorder) Stop(ctx context.Context) {
	r.recorder.Stop()
	r.logger.LogAttrs(ctx, slog.LevelInfo, "flight recorder stopped")
}

// Capture writes the buffered trace to a file named after reason. Calls within the cooldown are dropped and the
// written path is returned as "".
func (r *Recorder) Capture(ctx context.Context, reason string) string {
	now := r.now()
	last := r.lastCapture.Load()
	if last != 0 && now.Sub(time.Unix(0, last)) < r.cooldown {
		r.logger.LogAttrs(ctx, slog.LevelDebug, "skipping trace capture due to cooldown",
			slog.Time("last_capture", time.Unix(0, last)))
		return ""
	}
	// Another goroutine won the race for this window.
	if !r.lastCapture.CompareAndSwap(last, now.UnixNano()) {
		return ""
	}

	path := filepath.Join(r.dir, fmt.Sprintf("%s-%s.trace", reason, now.UTC().Format("20060102-150405.000")))
	file, err := os.Create(path)
	if err != nil {
		r.logger.LogAttrs(ctx, slog.LevelError, "failed to create trace file",
			slog.String("file", path), slog.Any("error", err))
		return ""
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			r.logger.LogAttrs(ctx, slog.LevelError, "failed to close trace file",
				slog.String("file", path), slog.Any("error", closeErr))
		}
	}()

	n, err := r.recorder.WriteTo(file)
	if err != nil {
		r.logger.LogAttrs(ctx, slog.LevelError, "failed to write trace",
			slog.String("file", path), slog.Any("error", err))
		return ""
	}
	r.logger.LogAttrs(ctx, slog.LevelWarn, "captured trace",
		slog.String("reason", reason), slog.String("file", path), slog.Int64("bytes", n))
	return path
}
