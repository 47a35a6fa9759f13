package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Stats holds request counters maintained atomically by the client.
type Stats struct {
	TotalRequests uint64
	TotalErrors   uint64
	RateLimited   uint64
}

// APIError describes a non-2xx response from the upstream service.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > 256 {
		body = body[:256] + "..."
	}
	return fmt.Sprintf("HTTP %d: %s", e.Status, body)
}

// Client is a REST client with client-side rate limiting and adaptive
// rate-limit retries. It is safe for concurrent use; the retry policy and
// the token bucket are shared by all callers.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	cfg        *config
	logger     *slog.Logger

	totalReqs   atomic.Uint64
	totalErrors atomic.Uint64
	rateLimited atomic.Uint64
}

// New creates a Client with the given options.
func New(opts ...Option) *Client {
	cfg := defaultConfig()
	for _, o := range opts {
		o(cfg)
	}

	hc := cfg.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.timeout}
	}

	var lim *rate.Limiter
	if cfg.rps > 0 {
		lim = rate.NewLimiter(rate.Limit(cfg.rps), cfg.burst)
	}

	log := cfg.logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return &Client{
		httpClient: hc,
		limiter:    lim,
		cfg:        cfg,
		logger:     log,
	}
}

// Stats returns a snapshot of request statistics.
func (c *Client) Stats() Stats {
	return Stats{
		TotalRequests: c.totalReqs.Load(),
		TotalErrors:   c.totalErrors.Load(),
		RateLimited:   c.rateLimited.Load(),
	}
}

// Do executes the request, waiting out rate-limited responses as directed
// by the retry policy. Each 429 is retried after the policy-computed delay
// until the policy's advisory retry ceiling is spent. Transport failures
// are returned as-is: with no response there is no server timing hint and
// the policy declines them. The response body is fully read and returned
// alongside the status code.
func (c *Client) Do(ctx context.Context, req *http.Request) ([]byte, int, error) {
	c.totalReqs.Add(1)

	// Capture the body so it can be replayed on retries.
	var bodyBytes []byte
	if req.Body != nil && req.Body != http.NoBody {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, 0, fmt.Errorf("read request body: %w", err)
		}
	}

	maxRetries := 0
	if c.cfg.policy != nil {
		maxRetries = c.cfg.policy.MaxRetries()
	}

	for attempt := 1; ; attempt++ {
		if err := c.waitRateLimit(ctx); err != nil {
			return nil, 0, fmt.Errorf("rate limit wait: %w", err)
		}

		clone := req.Clone(ctx)
		if bodyBytes != nil {
			clone.Body = io.NopCloser(bytes.NewReader(bodyBytes))
			clone.ContentLength = int64(len(bodyBytes))
		}
		c.decorate(clone)

		resp, err := c.httpClient.Do(clone)
		if err != nil {
			c.totalErrors.Add(1)
			return nil, 0, fmt.Errorf("%s %s: %w", req.Method, req.URL, err)
		}

		respBody, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.maxResponseSize))
		resp.Body.Close()
		if err != nil {
			c.totalErrors.Add(1)
			return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
		}

		if c.cfg.policy != nil && c.cfg.policy.ShouldRetry(resp) && attempt <= maxRetries {
			c.rateLimited.Add(1)
			delay := c.cfg.policy.Delay(attempt, resp.Header)

			c.logger.Warn("rate limited, waiting before retry",
				slog.String("method", req.Method),
				slog.String("url", req.URL.String()),
				slog.Int("attempt", attempt),
				slog.Int("max_retries", maxRetries),
				slog.Duration("delay", delay),
			)

			select {
			case <-ctx.Done():
				return nil, resp.StatusCode, ctx.Err()
			case <-time.After(delay):
			}
			continue
		}

		if resp.StatusCode >= 400 {
			c.totalErrors.Add(1)
			if resp.StatusCode == http.StatusTooManyRequests {
				c.rateLimited.Add(1)
			}
			return respBody, resp.StatusCode, &APIError{Status: resp.StatusCode, Body: string(respBody)}
		}

		return respBody, resp.StatusCode, nil
	}
}

// Get performs a GET request to baseURL+path.
func (c *Client) Get(ctx context.Context, path string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.baseURL+path, nil)
	if err != nil {
		return nil, 0, err
	}
	return c.Do(ctx, req)
}

// Post performs a POST request to baseURL+path with the given body.
func (c *Client) Post(ctx context.Context, path, contentType string, body io.Reader) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.baseURL+path, body)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", contentType)
	return c.Do(ctx, req)
}

// DoJSON marshals reqBody as JSON, sends the request, and unmarshals the
// response into respBody when both are non-nil.
func (c *Client) DoJSON(ctx context.Context, method, path string, reqBody, respBody any) (int, error) {
	var body io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return 0, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.baseURL+path, body)
	if err != nil {
		return 0, err
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	data, status, err := c.Do(ctx, req)
	if err != nil {
		return status, err
	}

	if respBody != nil && len(data) > 0 {
		if err := json.Unmarshal(data, respBody); err != nil {
			return status, fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return status, nil
}

func (c *Client) decorate(req *http.Request) {
	if c.cfg.userAgent != "" {
		req.Header.Set("User-Agent", c.cfg.userAgent)
	}
	if c.cfg.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.authToken)
	}
}

func (c *Client) waitRateLimit(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}
