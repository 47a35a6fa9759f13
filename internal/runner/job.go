package runner

import (
	"context"
	"errors"
	"time"
)

// Job is one unit of work. Run must honor ctx and return promptly once it
// is cancelled; the runner never preempts a job.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Status classifies how a job ended.
type Status string

// Job outcome status constants
const (
	StatusSuccess  Status = "SUCCESS"
	StatusCanceled Status = "CANCELED"
	StatusFailed   Status = "FAILED"
)

// Outcome is the immutable record of one finished job.
type Outcome struct {
	Name    string
	Status  Status
	Message string
	Elapsed time.Duration
}

// Summarize folds per-job outcomes into a single batch status. A failure
// anywhere wins, then a cancellation, then success. The result does not
// depend on outcome order.
func Summarize(outcomes []Outcome) Status {
	summary := StatusSuccess
	for _, o := range outcomes {
		switch o.Status {
		case StatusFailed:
			return StatusFailed
		case StatusCanceled:
			summary = StatusCanceled
		}
	}
	return summary
}

// Tally counts outcomes per status.
func Tally(outcomes []Outcome) (succeeded, canceled, failed int) {
	for _, o := range outcomes {
		switch o.Status {
		case StatusSuccess:
			succeeded++
		case StatusCanceled:
			canceled++
		case StatusFailed:
			failed++
		}
	}
	return succeeded, canceled, failed
}

// WithTimeout returns a copy of the job whose Run is bounded by its own
// deadline. A job that overruns it fails; cancellation of the parent
// context still surfaces as canceled.
func WithTimeout(job Job, d time.Duration) Job {
	inner := job.Run
	job.Run = func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return inner(ctx)
	}
	return job
}

// rootCause walks the Unwrap chain to the deepest error. Outcome messages
// carry that text so a summary line names the actual problem instead of
// the layers wrapped around it.
func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}
