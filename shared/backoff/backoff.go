// Package backoff decides whether and how long to wait before re-attempting
// a rate-limited request. The wait is driven by the server-supplied
// Retry-After timestamp rather than by attempt counting, so the policy is
// stateless and one instance may be shared across concurrent callers.
package backoff

import (
	"net/http"
	"time"

	"github.com/apiprobe/apiprobe/shared/clock"
)

const (
	// DefaultMaxRetries is the advisory retry ceiling when none is configured.
	DefaultMaxRetries = 4
	// DefaultDelay is the wait applied when the server gives no usable hint.
	DefaultDelay = 1 * time.Second
	// DefaultMaxDelay caps the wait regardless of what the server asked for.
	DefaultMaxDelay = 5 * time.Second
)

// Config holds retry policy configuration. The defaults match the upstream
// services this project was built against; override them per deployment.
type Config struct {
	MaxRetries   int
	DefaultDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultConfig returns the stock policy configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:   DefaultMaxRetries,
		DefaultDelay: DefaultDelay,
		MaxDelay:     DefaultMaxDelay,
	}
}

// Policy is a stateless retry decision object. It advises per attempt; the
// caller's own loop tracks the attempt count against MaxRetries.
type Policy struct {
	maxRetries   int
	defaultDelay time.Duration
	maxDelay     time.Duration
	clock        clock.Clock
}

// NewPolicy creates a Policy. A nil config selects DefaultConfig; zero or
// negative fields fall back to their defaults; a nil clock selects the
// system clock. An explicit MaxRetries of 0 is respected.
func NewPolicy(cfg *Config, clk clock.Clock) *Policy {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if clk == nil {
		clk = clock.System()
	}

	p := &Policy{
		maxRetries:   cfg.MaxRetries,
		defaultDelay: cfg.DefaultDelay,
		maxDelay:     cfg.MaxDelay,
		clock:        clk,
	}
	if p.maxRetries < 0 {
		p.maxRetries = DefaultMaxRetries
	}
	if p.defaultDelay <= 0 {
		p.defaultDelay = DefaultDelay
	}
	if p.maxDelay <= 0 {
		p.maxDelay = DefaultMaxDelay
	}
	return p
}

// ShouldRetry reports whether the response calls for another attempt.
// Only a rate-limited response (HTTP 429) qualifies. An absent response
// (network-level failure) and every other status, server errors included,
// do not.
func (p *Policy) ShouldRetry(resp *http.Response) bool {
	return resp != nil && resp.StatusCode == http.StatusTooManyRequests
}

// Delay returns how long to wait before the next attempt.
//
// The first Retry-After value is parsed strictly as an HTTP date naming the
// absolute instant at which retrying becomes valid; the upstream services
// this policy targets never send the delta-seconds form, and a bare number
// deliberately fails the parse. When the header is absent, unparseable, or
// already in the past, the configured default applies. The result is never
// negative and never exceeds the configured cap, which guards against a
// misbehaving server stalling the caller.
//
// The attempt number is accepted for symmetry with counting backoff
// strategies; the wait is driven entirely by the server timestamp.
func (p *Policy) Delay(_ int, header http.Header) time.Duration {
	delay := p.defaultDelay

	if raw := header.Get("Retry-After"); raw != "" {
		if at, err := http.ParseTime(raw); err == nil {
			if d := at.Sub(p.clock.Now()); d > 0 {
				delay = d
			}
		}
	}

	if delay > p.maxDelay {
		delay = p.maxDelay
	}
	return delay
}

// MaxRetries returns the advisory retry ceiling read by callers' loops.
// The policy itself never counts attempts.
func (p *Policy) MaxRetries() int {
	return p.maxRetries
}
