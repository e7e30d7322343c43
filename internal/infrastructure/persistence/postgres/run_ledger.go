package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/memberhub/member-records/internal/application/sweep"
)

// runLedgerSchema creates the convergence run history table.
const runLedgerSchema = `
CREATE TABLE IF NOT EXISTS convergence_runs (
	operation_id         TEXT PRIMARY KEY,
	reason               TEXT NOT NULL,
	total_processed      INTEGER NOT NULL,
	students_to_new_grad INTEGER NOT NULL,
	new_grad_to_graduated INTEGER NOT NULL,
	graduated_remaining  INTEGER NOT NULL,
	skipped              INTEGER NOT NULL,
	errors               INTEGER NOT NULL,
	warnings             INTEGER NOT NULL,
	truncated            BOOLEAN NOT NULL,
	started_at           TIMESTAMPTZ NOT NULL,
	finished_at          TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_convergence_runs_started_at
	ON convergence_runs (started_at DESC);
`

// RunLedger stores convergence runs in PostgreSQL. Unlike the Redis ledger
// there is no TTL: old rows are pruned past a retention window on write.
type RunLedger struct {
	conn      *Connection
	retention time.Duration
}

// NewRunLedger creates the ledger and ensures its schema exists.
func NewRunLedger(ctx context.Context, conn *Connection, retention time.Duration) (*RunLedger, error) {
	if retention <= 0 {
		retention = 90 * 24 * time.Hour
	}

	if _, err := conn.Pool().Exec(ctx, runLedgerSchema); err != nil {
		return nil, fmt.Errorf("ensure run ledger schema: %w", err)
	}

	return &RunLedger{conn: conn, retention: retention}, nil
}

// SaveRun inserts the run and prunes rows past the retention window.
func (l *RunLedger) SaveRun(ctx context.Context, stats *sweep.RunStats) error {
	const insert = `
		INSERT INTO convergence_runs (
			operation_id, reason, total_processed, students_to_new_grad,
			new_grad_to_graduated, graduated_remaining, skipped, errors,
			warnings, truncated, started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (operation_id) DO NOTHING`

	_, err := l.conn.Pool().Exec(ctx, insert,
		stats.OperationID,
		stats.Reason,
		stats.TotalProcessed,
		stats.StudentsToNewGrad,
		stats.NewGradToGraduated,
		stats.GraduatedRemaining,
		stats.Skipped,
		stats.Errors,
		stats.Warnings,
		stats.Truncated,
		stats.StartedAt,
		stats.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", stats.OperationID, err)
	}

	const prune = `DELETE FROM convergence_runs WHERE started_at < $1`
	if _, err := l.conn.Pool().Exec(ctx, prune, time.Now().Add(-l.retention)); err != nil {
		return fmt.Errorf("prune run ledger: %w", err)
	}

	return nil
}

// GetRun fetches a run by operation ID.
func (l *RunLedger) GetRun(ctx context.Context, operationID string) (*sweep.RunStats, error) {
	const query = `
		SELECT operation_id, reason, total_processed, students_to_new_grad,
		       new_grad_to_graduated, graduated_remaining, skipped, errors,
		       warnings, truncated, started_at, finished_at
		FROM convergence_runs
		WHERE operation_id = $1`

	stats, err := scanRun(l.conn.Pool().QueryRow(ctx, query, operationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sweep.ErrRunNotFound
		}
		return nil, fmt.Errorf("get run %s: %w", operationID, err)
	}
	return stats, nil
}

// RecentRuns returns up to limit runs, newest first.
func (l *RunLedger) RecentRuns(ctx context.Context, limit int) ([]*sweep.RunStats, error) {
	if limit <= 0 {
		limit = 100
	}

	const query = `
		SELECT operation_id, reason, total_processed, students_to_new_grad,
		       new_grad_to_graduated, graduated_remaining, skipped, errors,
		       warnings, truncated, started_at, finished_at
		FROM convergence_runs
		ORDER BY started_at DESC
		LIMIT $1`

	rows, err := l.conn.Pool().Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent runs: %w", err)
	}
	defer rows.Close()

	var runs []*sweep.RunStats
	for rows.Next() {
		stats, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, stats)
	}
	return runs, rows.Err()
}

// Ping checks the backing database.
func (l *RunLedger) Ping(ctx context.Context) error {
	return l.conn.Ping(ctx)
}

// scanRun reads one ledger row into RunStats.
func scanRun(row pgx.Row) (*sweep.RunStats, error) {
	var stats sweep.RunStats
	err := row.Scan(
		&stats.OperationID,
		&stats.Reason,
		&stats.TotalProcessed,
		&stats.StudentsToNewGrad,
		&stats.NewGradToGraduated,
		&stats.GraduatedRemaining,
		&stats.Skipped,
		&stats.Errors,
		&stats.Warnings,
		&stats.Truncated,
		&stats.StartedAt,
		&stats.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	stats.Duration = stats.FinishedAt.Sub(stats.StartedAt)
	return &stats, nil
}
