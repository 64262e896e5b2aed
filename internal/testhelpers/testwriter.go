package testhelpers

import (
	"io"
	"strings"
	"sync/atomic"
	"testing"
)

// Writer sends each write to tb.Log, so log output is only shown for failed or verbose tests.
type Writer struct {
	tb   testing.TB
	done atomic.Bool
}

// NewWriter returns a Writer bound to tb. Writing after tb has finished panics, which exposes goroutines such as
// servers that outlive their test.
func NewWriter(tb testing.TB) io.Writer {
	w := &Writer{tb: tb, done: atomic.Bool{}}
	tb.Cleanup(func() {
		w.done.Store(true)
	})
	return w
}

func (w *Writer) Write(p []byte) (int, error) {
	if w.done.Load() {
		panic("testhelpers: write after the test finished, is a server still running after its cleanup?")
	}
	// Log adds its own newline.
	if line := strings.TrimRight(string(p), "\n"); line != "" {
		w.tb.Log(line)
	}
	return len(p), nil
}
