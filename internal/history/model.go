package history

import "time"

// Run is one recorded batch run.
type Run struct {
	RunID       string    `db:"run_id"`
	App         string    `db:"app"`
	Environment string    `db:"environment"`
	Target      string    `db:"target"`
	Overall     string    `db:"overall"`
	Succeeded   int       `db:"succeeded"`
	Canceled    int       `db:"canceled"`
	Failed      int       `db:"failed"`
	StartedAt   time.Time `db:"started_at"`
	FinishedAt  time.Time `db:"finished_at"`
}
