package clock

import (
	"sync"
	"time"
)

// Clock supplies the current UTC instant. Components that schedule work
// against wall time take a Clock so tests can substitute a deterministic one.
type Clock interface {
	Now() time.Time
}

// Real reads the system clock.
type Real struct{}

// Now returns the current time in UTC.
func (Real) Now() time.Time {
	return time.Now().UTC()
}

// System returns the process-wide default clock.
func System() Clock {
	return Real{}
}

// Fake is a deterministic clock for tests. It only moves when told to.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake creates a fake clock frozen at the given instant.
func NewFake(at time.Time) *Fake {
	return &Fake{now: at.UTC()}
}

// Now returns the fake clock's current instant.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance moves the fake clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// Set moves the fake clock to the given instant.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t.UTC()
}
