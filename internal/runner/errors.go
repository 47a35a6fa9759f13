package runner

import "errors"

var (
	// ErrInvalidConcurrency is returned when Run is asked for a pool of
	// fewer than one worker.
	ErrInvalidConcurrency = errors.New("concurrency must be at least 1")
)
