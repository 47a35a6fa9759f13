// Package history persists finished probe runs to PostgreSQL so that
// results can be compared across invocations.
package history

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/apiprobe/apiprobe/internal/runner"
	"github.com/apiprobe/apiprobe/shared/postgresql"
)

// schema is applied on startup; the tool bootstraps its own tables and
// there is no separate migration step.
const schema = `
CREATE TABLE IF NOT EXISTS probe_runs (
	run_id      UUID PRIMARY KEY,
	app         VARCHAR(100) NOT NULL,
	environment VARCHAR(50) NOT NULL,
	target      VARCHAR(255) NOT NULL,
	overall     VARCHAR(20) NOT NULL,
	succeeded   INT NOT NULL DEFAULT 0,
	canceled    INT NOT NULL DEFAULT 0,
	failed      INT NOT NULL DEFAULT 0,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS probe_results (
	id         BIGSERIAL PRIMARY KEY,
	run_id     UUID NOT NULL REFERENCES probe_runs(run_id) ON DELETE CASCADE,
	check_name VARCHAR(100) NOT NULL,
	status     VARCHAR(20) NOT NULL,
	message    TEXT NOT NULL DEFAULT '',
	elapsed_ms BIGINT NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_probe_results_run_id ON probe_results(run_id);
`

// Store persists probe runs and their per-check results.
type Store struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a history store on top of an established PostgreSQL client.
func NewStore(pg *postgresql.Client, logger *slog.Logger) *Store {
	return &Store{
		db:     pg.GetDB(),
		logger: logger,
	}
}

// EnsureSchema creates the history tables when they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create history schema: %w", err)
	}
	return nil
}

// Record writes the run row and one result row per outcome in a single
// transaction, so a half-written run never shows up in the history.
func (s *Store) Record(ctx context.Context, run Run, outcomes []runner.Outcome) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	insertRun := `
		INSERT INTO probe_runs (
			run_id, app, environment, target, overall,
			succeeded, canceled, failed, started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	if _, err := tx.ExecContext(ctx, insertRun,
		run.RunID, run.App, run.Environment, run.Target, run.Overall,
		run.Succeeded, run.Canceled, run.Failed, run.StartedAt, run.FinishedAt,
	); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	insertResult := `
		INSERT INTO probe_results (run_id, check_name, status, message, elapsed_ms)
		VALUES ($1, $2, $3, $4, $5)
	`
	for _, o := range outcomes {
		if _, err := tx.ExecContext(ctx, insertResult,
			run.RunID, o.Name, string(o.Status), o.Message, o.Elapsed.Milliseconds(),
		); err != nil {
			return fmt.Errorf("failed to insert result for check %q: %w", o.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run history: %w", err)
	}

	s.logger.Info("Run recorded",
		slog.String("run_id", run.RunID),
		slog.Int("results", len(outcomes)),
	)
	return nil
}

// RecentRuns returns the most recent runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `
		SELECT run_id, app, environment, target, overall,
		       succeeded, canceled, failed, started_at, finished_at
		FROM probe_runs
		ORDER BY started_at DESC, run_id DESC
		LIMIT $1
	`
	var runs []Run
	if err := s.db.SelectContext(ctx, &runs, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list recent runs: %w", err)
	}
	return runs, nil
}
