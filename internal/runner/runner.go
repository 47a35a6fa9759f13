// Package runner executes a batch of independent jobs on a bounded worker
// pool and reports exactly one outcome per job.
//
// The pool holds a hard concurrency cap: maxWorkers goroutines pull from a
// shared unbuffered channel, so at no point do more than maxWorkers jobs
// execute at once. One job failing, panicking, or being cancelled never
// disturbs its siblings. Cancellation is cooperative: cancelling the
// context stops the hand-out of pending jobs and is passed through to
// running jobs, which are expected to return on their own.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Runner runs job batches. The zero value is not usable; construct with New.
type Runner struct {
	logger *slog.Logger
}

// New creates a Runner. A nil logger discards all log output.
func New(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{logger: logger}
}

// Run executes jobs on a pool of maxWorkers goroutines and returns one
// Outcome per job in completion order. Jobs the pool never got to start
// after a cancellation come back as Canceled outcomes, so the caller can
// always account for the whole batch. Run itself only fails on invalid
// input; job errors are reported through outcomes.
func (r *Runner) Run(ctx context.Context, jobs []Job, maxWorkers int) ([]Outcome, error) {
	if maxWorkers < 1 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidConcurrency, maxWorkers)
	}
	if len(jobs) == 0 {
		return []Outcome{}, nil
	}

	r.logger.Info("Spawning worker pool",
		slog.Int("concurrency", maxWorkers),
		slog.Int("jobs", len(jobs)),
	)

	jobsChan := make(chan Job)
	resultsChan := make(chan Outcome, len(jobs))

	var wg sync.WaitGroup
	for i := 0; i < maxWorkers; i++ {
		wg.Add(1)
		go func(workerNum int) {
			defer wg.Done()
			r.workerLoop(ctx, workerNum, jobsChan, resultsChan)
		}(i)
	}

	// The feeder hands jobs to idle workers one at a time. The jobs channel
	// is unbuffered on purpose: a job is either in a worker's hands or still
	// the feeder's responsibility, never parked in between. On cancellation
	// the feeder settles every job it still holds as Canceled.
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(jobsChan)
		for i, job := range jobs {
			select {
			case jobsChan <- job:
			case <-ctx.Done():
				msg := rootCause(context.Cause(ctx)).Error()
				for _, skipped := range jobs[i:] {
					r.logger.Info("Job skipped, batch canceled",
						slog.String("job", skipped.Name),
					)
					resultsChan <- Outcome{
						Name:    skipped.Name,
						Status:  StatusCanceled,
						Message: msg,
					}
				}
				return
			}
		}
	}()

	wg.Wait()
	close(resultsChan)

	outcomes := make([]Outcome, 0, len(jobs))
	for outcome := range resultsChan {
		outcomes = append(outcomes, outcome)
	}

	r.logger.Info("Worker pool drained",
		slog.Int("outcomes", len(outcomes)),
	)
	return outcomes, nil
}

// workerLoop is the main processing loop for each worker goroutine
func (r *Runner) workerLoop(ctx context.Context, workerNum int, jobsChan <-chan Job, resultsChan chan<- Outcome) {
	log := r.logger.With(slog.Int("worker_num", workerNum))
	log.Debug("Worker goroutine started")

	for {
		select {
		case <-ctx.Done():
			log.Debug("Worker goroutine stopping - context canceled")
			return

		case job, ok := <-jobsChan:
			if !ok {
				log.Debug("Worker goroutine stopping - no more jobs")
				return
			}

			outcome := r.runJob(ctx, job)
			resultsChan <- outcome

			log.Info("Job finished",
				slog.String("job", job.Name),
				slog.String("status", string(outcome.Status)),
				slog.Duration("elapsed", outcome.Elapsed),
			)
		}
	}
}

// runJob executes a single job and classifies its result. A panic inside
// the job is contained here and becomes a Failed outcome.
func (r *Runner) runJob(ctx context.Context, job Job) (outcome Outcome) {
	start := time.Now()

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Job panicked",
				slog.String("job", job.Name),
				slog.Any("panic", p),
			)
			outcome = Outcome{
				Name:    job.Name,
				Status:  StatusFailed,
				Message: fmt.Sprintf("panic: %v", p),
				Elapsed: time.Since(start),
			}
		}
	}()

	err := job.Run(ctx)
	elapsed := time.Since(start)

	switch {
	case err == nil:
		return Outcome{Name: job.Name, Status: StatusSuccess, Elapsed: elapsed}
	case errors.Is(err, context.Canceled):
		return Outcome{
			Name:    job.Name,
			Status:  StatusCanceled,
			Message: rootCause(err).Error(),
			Elapsed: elapsed,
		}
	default:
		return Outcome{
			Name:    job.Name,
			Status:  StatusFailed,
			Message: rootCause(err).Error(),
			Elapsed: elapsed,
		}
	}
}
