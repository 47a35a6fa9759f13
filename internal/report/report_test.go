package report

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apiprobe/apiprobe/internal/runner"
)

func sampleMeta() Meta {
	return Meta{
		RunID:       "6f1e9e3a-0b0d-4a6a-9d3e-0c8a1f2b3c4d",
		App:         "apiprobe",
		Environment: "test",
		Target:      "http://127.0.0.1:9090",
		StartedAt:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		FinishedAt:  time.Date(2025, 6, 1, 12, 0, 2, 0, time.UTC),
	}
}

func TestBuild(t *testing.T) {
	outcomes := []runner.Outcome{
		{Name: "status", Status: runner.StatusSuccess, Elapsed: 120 * time.Millisecond},
		{Name: "burst", Status: runner.StatusFailed, Message: "HTTP 500: boom", Elapsed: 2 * time.Second},
		{Name: "echo", Status: runner.StatusCanceled, Message: "context canceled", Elapsed: 5 * time.Millisecond},
	}

	rep := Build(sampleMeta(), outcomes)

	assert.Equal(t, "FAILED", rep.Overall)
	assert.Equal(t, 1, rep.Succeeded)
	assert.Equal(t, 1, rep.Canceled)
	assert.Equal(t, 1, rep.Failed)

	require.Len(t, rep.Checks, 3)
	names := []string{rep.Checks[0].Name, rep.Checks[1].Name, rep.Checks[2].Name}
	assert.Equal(t, []string{"burst", "echo", "status"}, names)
	assert.Equal(t, int64(2000), rep.Checks[0].ElapsedMS)
	assert.Equal(t, "HTTP 500: boom", rep.Checks[0].Message)
}

func TestBuild_OverallPrecedence(t *testing.T) {
	tests := []struct {
		name     string
		statuses []runner.Status
		want     string
	}{
		{"all success", []runner.Status{runner.StatusSuccess, runner.StatusSuccess}, "SUCCESS"},
		{"canceled wins over success", []runner.Status{runner.StatusSuccess, runner.StatusCanceled}, "CANCELED"},
		{"failure wins over canceled", []runner.Status{runner.StatusCanceled, runner.StatusFailed}, "FAILED"},
		{"no outcomes", nil, "SUCCESS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcomes := make([]runner.Outcome, 0, len(tt.statuses))
			for i, s := range tt.statuses {
				outcomes = append(outcomes, runner.Outcome{
					Name:   fmt.Sprintf("check-%d", i),
					Status: s,
				})
			}

			rep := Build(sampleMeta(), outcomes)

			assert.Equal(t, tt.want, rep.Overall)
		})
	}
}

func TestReport_MarshalShape(t *testing.T) {
	rep := Build(sampleMeta(), []runner.Outcome{
		{Name: "status", Status: runner.StatusSuccess, Elapsed: 42 * time.Millisecond},
	})

	body, err := json.Marshal(rep)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))

	for _, key := range []string{
		"run_id", "app", "environment", "target", "overall",
		"succeeded", "canceled", "failed", "started_at", "finished_at", "checks",
	} {
		assert.Contains(t, decoded, key)
	}

	checks, ok := decoded["checks"].([]any)
	require.True(t, ok)
	require.Len(t, checks, 1)

	check, ok := checks[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "status", check["name"])
	assert.Equal(t, float64(42), check["elapsed_ms"])
	assert.NotContains(t, check, "message")
}

func TestReport_Summary(t *testing.T) {
	rep := Build(sampleMeta(), []runner.Outcome{
		{Name: "status", Status: runner.StatusSuccess, Elapsed: 120 * time.Millisecond},
		{Name: "echo", Status: runner.StatusFailed, Message: "HTTP 503: down", Elapsed: 30 * time.Millisecond},
	})

	out := rep.Summary()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 4)

	assert.Contains(t, lines[0], rep.RunID)
	assert.Contains(t, lines[0], rep.Target)
	assert.Contains(t, lines[1], "echo")
	assert.Contains(t, lines[1], "FAILED")
	assert.Contains(t, lines[1], "HTTP 503: down")
	assert.Contains(t, lines[2], "status")
	assert.Contains(t, lines[2], "SUCCESS")
	assert.Equal(t, "FAILED: 1 succeeded, 1 failed, 0 canceled (2s)", lines[3])
}
