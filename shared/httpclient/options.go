package httpclient

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/apiprobe/apiprobe/shared/backoff"
)

// Option configures a Client.
type Option func(*config)

type config struct {
	baseURL         string
	authToken       string
	userAgent       string
	timeout         time.Duration
	maxResponseSize int64
	rps             float64
	burst           int
	policy          *backoff.Policy
	httpClient      *http.Client
	logger          *slog.Logger
}

func defaultConfig() *config {
	return &config{
		timeout:         30 * time.Second,
		maxResponseSize: 10 * 1024 * 1024, // 10 MB
		burst:           1,
		userAgent:       "apiprobe",
	}
}

// WithBaseURL sets the base URL prefix for the convenience methods
// (Get, Post, DoJSON).
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithAuthToken sets a static bearer token sent on every request.
// Token acquisition and refresh are the caller's concern.
func WithAuthToken(token string) Option {
	return func(c *config) { c.authToken = token }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *config) { c.userAgent = ua }
}

// WithTimeout sets the per-request timeout of the underlying HTTP client.
// Non-positive values keep the default. Ignored when a custom client is
// provided via WithHTTPClient.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithMaxResponseSize caps how many response body bytes are read.
// Non-positive values keep the default.
func WithMaxResponseSize(n int64) Option {
	return func(c *config) {
		if n > 0 {
			c.maxResponseSize = n
		}
	}
}

// WithRateLimit enables a client-side token bucket limiting outbound
// requests per second. Zero rps disables the limiter.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *config) {
		c.rps = rps
		if burst > 0 {
			c.burst = burst
		}
	}
}

// WithRetryPolicy sets the rate-limit retry policy. Without one the client
// never retries.
func WithRetryPolicy(p *backoff.Policy) Option {
	return func(c *config) { c.policy = p }
}

// WithHTTPClient sets a custom underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) { c.httpClient = hc }
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}
