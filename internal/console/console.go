// Package console owns the shared terminal output of a probe run. Checks
// run concurrently but the terminal is one stream, so every write goes
// through a mutex-guarded sink. Checks are expected to collect their lines
// in a local buffer and flush it in a single Write, which keeps one check's
// output contiguous no matter how the scheduler interleaves the workers.
package console

import (
	"fmt"
	"io"
	"sync"
)

// Sink serializes writes from concurrent checks onto one io.Writer.
type Sink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewSink wraps w. A nil writer discards everything.
func NewSink(w io.Writer) *Sink {
	if w == nil {
		w = io.Discard
	}
	return &Sink{w: w}
}

// Write writes p in one critical section. It never splits p across other
// writers' output.
func (s *Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// Printf formats and writes atomically. fmt.Fprintf hands the formatted
// bytes to Write in a single call.
func (s *Sink) Printf(format string, args ...any) {
	fmt.Fprintf(s, format, args...)
}
