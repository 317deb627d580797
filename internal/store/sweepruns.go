package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/starford/fehu/internal/apperr"
	"github.com/starford/fehu/internal/models"
)

// Sweep run statuses.
const (
	sweepRunning = "running"
	sweepDone    = "done"
	sweepFailed  = "failed"
)

// BeginSweepRun claims the run-in-progress marker. It returns the run id,
// or ErrConflict when another sweep is still marked running — the caller
// skips instead of interleaving two sweeps over the same loan set.
func (db *DB) BeginSweepRun(startedAt time.Time) (int64, error) {
	res, err := db.conn.Exec(`
		INSERT INTO sweep_runs (status, started_at)
		SELECT ?, ?
		WHERE NOT EXISTS (SELECT 1 FROM sweep_runs WHERE status = ?)
	`, sweepRunning, startedAt, sweepRunning)
	if err != nil {
		return 0, fmt.Errorf("store: begin sweep run: %w", errors.Join(apperr.ErrPersistence, err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("store: begin sweep run rows: %w", errors.Join(apperr.ErrPersistence, err))
	}
	if n == 0 {
		return 0, fmt.Errorf("sweep already in progress: %w", apperr.ErrConflict)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: sweep run id: %w", errors.Join(apperr.ErrPersistence, err))
	}
	return id, nil
}

// FailStaleSweepRuns marks any leftover running markers as failed. Called
// once at startup so a crash mid-sweep does not block every later run.
func (db *DB) FailStaleSweepRuns(now time.Time) (int64, error) {
	res, err := db.conn.Exec(`
		UPDATE sweep_runs SET status = ?, finished_at = ? WHERE status = ?
	`, sweepFailed, now, sweepRunning)
	if err != nil {
		return 0, fmt.Errorf("store: fail stale sweep runs: %w", errors.Join(apperr.ErrPersistence, err))
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// FinishSweepRun releases the marker and records the run's report.
func (db *DB) FinishSweepRun(id int64, finishedAt time.Time, report models.SweepReport, failed bool) error {
	status := sweepDone
	if failed {
		status = sweepFailed
	}
	_, err := db.conn.Exec(`
		UPDATE sweep_runs SET
			status = ?, finished_at = ?, processed = ?, transitioned = ?, fined = ?, errored = ?
		WHERE id = ?
	`, status, finishedAt, report.Processed, report.Transitioned, report.Fined, report.Errored, id)
	if err != nil {
		return fmt.Errorf("store: finish sweep run: %w", errors.Join(apperr.ErrPersistence, err))
	}
	return nil
}
