package probe

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/apiprobe/apiprobe/internal/runner"
)

// burstRequests is how many back-to-back requests the burst check fires.
// High enough to trip the sandbox's default rate limit.
const burstRequests = 5

// Defaults returns a registry with the built-in checks.
func Defaults() *Registry {
	r := NewRegistry()
	r.MustRegister("status", StatusCheck)
	r.MustRegister("echo", EchoCheck)
	r.MustRegister("burst", BurstCheck)
	return r
}

// StatusCheck verifies the target's status endpoint reports healthy.
// Each check buffers its own console lines and flushes them in one write on
// every exit path, so concurrent checks never interleave their output.
func StatusCheck(env Env) runner.Job {
	return runner.Job{
		Name: "status",
		Run: func(ctx context.Context) error {
			var buf bytes.Buffer
			defer func() { env.Sink.Write(buf.Bytes()) }()

			env.log().Debug("check starting", "check", "status")
			fmt.Fprintf(&buf, "[status] GET /v1/status\n")

			var payload struct {
				Status string `json:"status"`
			}
			code, err := env.Client.DoJSON(ctx, http.MethodGet, "/v1/status", nil, &payload)
			if err != nil {
				fmt.Fprintf(&buf, "[status] request failed: %v\n", err)
				return fmt.Errorf("status check: %w", err)
			}
			if payload.Status != "ok" {
				fmt.Fprintf(&buf, "[status] unexpected payload status %q\n", payload.Status)
				return fmt.Errorf("status check: unexpected status %q", payload.Status)
			}

			fmt.Fprintf(&buf, "[status] healthy (HTTP %d)\n", code)
			return nil
		},
	}
}

type echoMessage struct {
	Message string `json:"message"`
}

// EchoCheck round-trips a unique payload through the echo endpoint.
func EchoCheck(env Env) runner.Job {
	return runner.Job{
		Name: "echo",
		Run: func(ctx context.Context) error {
			var buf bytes.Buffer
			defer func() { env.Sink.Write(buf.Bytes()) }()

			nonce := uuid.NewString()
			env.log().Debug("check starting", "check", "echo", "nonce", nonce)
			fmt.Fprintf(&buf, "[echo] POST /v1/echo\n")

			var reply echoMessage
			if _, err := env.Client.DoJSON(ctx, http.MethodPost, "/v1/echo", echoMessage{Message: nonce}, &reply); err != nil {
				fmt.Fprintf(&buf, "[echo] request failed: %v\n", err)
				return fmt.Errorf("echo check: %w", err)
			}
			if reply.Message != nonce {
				fmt.Fprintf(&buf, "[echo] sent %q, got back %q\n", nonce, reply.Message)
				return fmt.Errorf("echo check: response message mismatch")
			}

			fmt.Fprintf(&buf, "[echo] round trip ok\n")
			return nil
		},
	}
}

// BurstCheck fires rapid back-to-back requests at the work endpoint. Against
// a rate-limited target this walks straight into 429 responses, which the
// client absorbs by honoring the announced Retry-After instant, so the check
// passes exactly when that handling works.
func BurstCheck(env Env) runner.Job {
	return runner.Job{
		Name: "burst",
		Run: func(ctx context.Context) error {
			var buf bytes.Buffer
			defer func() { env.Sink.Write(buf.Bytes()) }()

			env.log().Debug("check starting", "check", "burst")
			fmt.Fprintf(&buf, "[burst] %d rapid GET /v1/work\n", burstRequests)

			for i := 1; i <= burstRequests; i++ {
				if err := ctx.Err(); err != nil {
					fmt.Fprintf(&buf, "[burst] stopped at request %d: %v\n", i, err)
					return fmt.Errorf("burst check: %w", err)
				}

				_, code, err := env.Client.Get(ctx, "/v1/work")
				if err != nil {
					fmt.Fprintf(&buf, "[burst] request %d failed: %v\n", i, err)
					return fmt.Errorf("burst check request %d: %w", i, err)
				}
				fmt.Fprintf(&buf, "[burst] request %d -> HTTP %d\n", i, code)
			}

			fmt.Fprintf(&buf, "[burst] all %d requests completed\n", burstRequests)
			return nil
		},
	}
}
