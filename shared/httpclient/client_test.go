package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apiprobe/apiprobe/shared/backoff"
)

// fastPolicy keeps retry waits in the millisecond range so tests stay quick.
func fastPolicy(maxRetries int) *backoff.Policy {
	return backoff.NewPolicy(&backoff.Config{
		MaxRetries:   maxRetries,
		DefaultDelay: 10 * time.Millisecond,
		MaxDelay:     50 * time.Millisecond,
	}, nil)
}

func TestClient_Get(t *testing.T) {
	var gotUA, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, `{"status":"up"}`)
	}))
	defer srv.Close()

	c := New(
		WithBaseURL(srv.URL),
		WithAuthToken("secret"),
		WithUserAgent("apiprobe-test"),
	)

	body, status, err := c.Get(context.Background(), "/v1/status")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, `{"status":"up"}`, string(body))
	assert.Equal(t, "apiprobe-test", gotUA)
	assert.Equal(t, "Bearer secret", gotAuth)
}

func TestClient_Do_RetriesOnRateLimit(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch attempts.Add(1) {
		case 1:
			// Announce an absolute retry instant; the client clamps the
			// resulting wait to the policy cap.
			at := time.Now().Add(1 * time.Second).UTC().Format(http.TimeFormat)
			w.Header().Set("Retry-After", at)
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			io.WriteString(w, "done")
		}
	}))
	defer srv.Close()

	c := New(WithBaseURL(srv.URL), WithRetryPolicy(fastPolicy(4)))

	body, status, err := c.Get(context.Background(), "/v1/work")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "done", string(body))
	assert.Equal(t, int32(3), attempts.Load())

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.TotalRequests)
	assert.Equal(t, uint64(2), stats.RateLimited)
	assert.Equal(t, uint64(0), stats.TotalErrors)
}

func TestClient_Do_NoRetryOnServerError(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, "boom")
	}))
	defer srv.Close()

	c := New(WithBaseURL(srv.URL), WithRetryPolicy(fastPolicy(4)))

	body, status, err := c.Get(context.Background(), "/v1/status")
	require.Error(t, err)
	assert.Equal(t, int32(1), attempts.Load(), "server errors must not be retried")
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "boom", string(body))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Equal(t, "boom", apiErr.Body)
}

func TestClient_Do_RetryBudgetExhausted(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(WithBaseURL(srv.URL), WithRetryPolicy(fastPolicy(2)))

	_, status, err := c.Get(context.Background(), "/v1/work")
	require.Error(t, err)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, int32(3), attempts.Load(), "initial attempt plus two retries")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
}

func TestClient_Do_ZeroRetries(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(WithBaseURL(srv.URL), WithRetryPolicy(fastPolicy(0)))

	_, _, err := c.Get(context.Background(), "/v1/work")
	require.Error(t, err)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestClient_Do_ContextCancelledDuringWait(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	slow := backoff.NewPolicy(&backoff.Config{
		MaxRetries:   3,
		DefaultDelay: 5 * time.Second,
		MaxDelay:     5 * time.Second,
	}, nil)
	c := New(WithBaseURL(srv.URL), WithRetryPolicy(slow))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, _, err := c.Get(ctx, "/v1/work")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second, "cancellation must interrupt the retry wait")
}

func TestClient_Do_NetworkErrorNotRetried(t *testing.T) {
	ft := &failingTransport{}
	c := New(
		WithBaseURL("http://example.invalid"),
		WithRetryPolicy(fastPolicy(4)),
		WithHTTPClient(&http.Client{Transport: ft}),
	)

	_, status, err := c.Get(context.Background(), "/v1/status")
	require.Error(t, err)
	assert.Equal(t, 0, status)
	assert.Equal(t, int32(1), ft.calls.Load(), "transport failures must not be retried")
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, uint64(1), c.Stats().TotalErrors)
}

type failingTransport struct {
	calls atomic.Int32
}

func (t *failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	t.calls.Add(1)
	return nil, errors.New("connection reset")
}

func TestClient_Post_ReplaysBodyOnRetry(t *testing.T) {
	var attempts atomic.Int32
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(data))
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := New(WithBaseURL(srv.URL), WithRetryPolicy(fastPolicy(4)))

	_, status, err := c.Post(context.Background(), "/v1/echo", "text/plain", strings.NewReader("payload"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, status)
	require.Len(t, bodies, 2)
	assert.Equal(t, "payload", bodies[0])
	assert.Equal(t, "payload", bodies[1], "retried request must carry the same body")
}

func TestClient_DoJSON(t *testing.T) {
	type echo struct {
		Message string `json:"message"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))

		var in echo
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(echo{Message: strings.ToUpper(in.Message)})
	}))
	defer srv.Close()

	c := New(WithBaseURL(srv.URL))

	var out echo
	status, err := c.DoJSON(context.Background(), http.MethodPost, "/v1/echo", echo{Message: "hello"}, &out)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "HELLO", out.Message)
}

func TestClient_Do_ResponseSizeLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, strings.Repeat("x", 1024))
	}))
	defer srv.Close()

	c := New(WithBaseURL(srv.URL), WithMaxResponseSize(16))

	body, _, err := c.Get(context.Background(), "/v1/status")
	require.NoError(t, err)
	assert.Len(t, body, 16)
}

func TestAPIError_Error(t *testing.T) {
	short := &APIError{Status: 404, Body: "not found"}
	assert.Equal(t, "HTTP 404: not found", short.Error())

	long := &APIError{Status: 500, Body: strings.Repeat("a", 300)}
	msg := long.Error()
	assert.Contains(t, msg, "HTTP 500:")
	assert.Contains(t, msg, "...")
	assert.Less(t, len(msg), 300)
}
