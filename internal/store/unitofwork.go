package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/fehu/internal/apperr"
)

// Tx is the transactional handle passed to a unit of work. All row
// mutations performed through it commit or roll back together.
//
// Side effects outside the transactional store (artifact files) register a
// compensating action with OnRollback; compensations run, newest first,
// only when the unit of work fails.
type Tx struct {
	tx            *sql.Tx
	compensations []func()
}

// OnRollback registers a compensating action to undo a non-transactional
// side effect if this unit of work rolls back.
func (t *Tx) OnRollback(fn func()) {
	t.compensations = append(t.compensations, fn)
}

func (t *Tx) rollbackCompensations() {
	for i := len(t.compensations) - 1; i >= 0; i-- {
		t.compensations[i]()
	}
}

// Execute runs fn inside one database transaction bounded by the store's
// transaction timeout. It commits when fn returns nil and rolls back (and
// fires registered compensations) when fn returns an error or the context
// expires. No partial state is ever observable.
func (db *DB) Execute(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) error {
	ctx, cancel := context.WithTimeout(ctx, db.txTimeout)
	defer cancel()

	sqlTx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", errors.Join(apperr.ErrPersistence, err))
	}

	t := &Tx{tx: sqlTx}

	if err := fn(ctx, t); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			slog.Error("store: rollback failed", slog.String("error", rbErr.Error()))
		}
		t.rollbackCompensations()
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		t.rollbackCompensations()
		return fmt.Errorf("store: commit: %w", errors.Join(apperr.ErrPersistence, err))
	}
	return nil
}
