// Package report turns the outcomes of a probe run into a publishable
// JSON document and a human-readable console summary.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/apiprobe/apiprobe/internal/runner"
)

// Check is one probe result inside a report.
type Check struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	ElapsedMS int64  `json:"elapsed_ms"`
}

// Report is the full run document shipped to the broker.
type Report struct {
	RunID       string    `json:"run_id"`
	App         string    `json:"app"`
	Environment string    `json:"environment"`
	Target      string    `json:"target"`
	Overall     string    `json:"overall"`
	Succeeded   int       `json:"succeeded"`
	Canceled    int       `json:"canceled"`
	Failed      int       `json:"failed"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Checks      []Check   `json:"checks"`
}

// Meta identifies the run a report describes.
type Meta struct {
	RunID       string
	App         string
	Environment string
	Target      string
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Build assembles a report from run outcomes. Checks are sorted by name so
// the document is stable regardless of completion order.
func Build(meta Meta, outcomes []runner.Outcome) Report {
	succeeded, canceled, failed := runner.Tally(outcomes)

	checks := make([]Check, 0, len(outcomes))
	for _, o := range outcomes {
		checks = append(checks, Check{
			Name:      o.Name,
			Status:    string(o.Status),
			Message:   o.Message,
			ElapsedMS: o.Elapsed.Milliseconds(),
		})
	}
	sort.Slice(checks, func(i, j int) bool {
		return checks[i].Name < checks[j].Name
	})

	return Report{
		RunID:       meta.RunID,
		App:         meta.App,
		Environment: meta.Environment,
		Target:      meta.Target,
		Overall:     string(runner.Summarize(outcomes)),
		Succeeded:   succeeded,
		Canceled:    canceled,
		Failed:      failed,
		StartedAt:   meta.StartedAt.UTC(),
		FinishedAt:  meta.FinishedAt.UTC(),
		Checks:      checks,
	}
}

// Summary renders the report for the console, one line per check plus a
// closing tally.
func (r Report) Summary() string {
	var b strings.Builder

	fmt.Fprintf(&b, "run %s against %s\n", r.RunID, r.Target)
	for _, c := range r.Checks {
		fmt.Fprintf(&b, "  %-12s %-8s %6dms", c.Name, c.Status, c.ElapsedMS)
		if c.Message != "" {
			fmt.Fprintf(&b, "  %s", c.Message)
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "%s: %d succeeded, %d failed, %d canceled (%s)\n",
		r.Overall, r.Succeeded, r.Failed, r.Canceled,
		r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond),
	)

	return b.String()
}
