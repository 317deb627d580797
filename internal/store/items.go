package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/starford/fehu/internal/apperr"
	"github.com/starford/fehu/internal/models"
)

// GetItem returns the catalog entry for id.
func (db *DB) GetItem(id string) (*models.Item, error) {
	return scanItem(db.conn.QueryRow(`
		SELECT id, title, total_copies, available_copies, daily_fine_rate
		FROM items WHERE id = ?`, id))
}

// GetItemTx reads an item inside the given unit of work.
func (db *DB) GetItemTx(t *Tx, id string) (*models.Item, error) {
	return scanItem(t.tx.QueryRow(`
		SELECT id, title, total_copies, available_copies, daily_fine_rate
		FROM items WHERE id = ?`, id))
}

func scanItem(r rowScanner) (*models.Item, error) {
	var (
		it   models.Item
		rate string
	)
	err := r.Scan(&it.ID, &it.Title, &it.TotalCopies, &it.AvailableCopies, &rate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get item: %w", err)
	}
	it.DailyFineRate, err = decimal.NewFromString(rate)
	if err != nil {
		return nil, fmt.Errorf("store: parse daily_fine_rate %q: %w", rate, err)
	}
	return &it, nil
}

// UpsertItem registers or updates a catalog entry. Seeding only: the copy
// counter is otherwise mutated exclusively through ReserveCopy/RestoreCopy.
func (db *DB) UpsertItem(it *models.Item) error {
	_, err := db.conn.Exec(`
		INSERT INTO items (id, title, total_copies, available_copies, daily_fine_rate)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title           = excluded.title,
			total_copies    = excluded.total_copies,
			daily_fine_rate = excluded.daily_fine_rate
	`, it.ID, it.Title, it.TotalCopies, it.AvailableCopies, it.DailyFineRate.String())
	if err != nil {
		return fmt.Errorf("store: upsert item: %w", errors.Join(apperr.ErrPersistence, err))
	}
	return nil
}

// ReserveCopy atomically takes one available copy of the item, inside the
// given unit of work. It fails with ErrValidation when no copy is free.
func (db *DB) ReserveCopy(t *Tx, itemRef string) error {
	res, err := t.tx.Exec(`
		UPDATE items SET available_copies = available_copies - 1
		WHERE id = ? AND available_copies > 0`, itemRef)
	if err != nil {
		return fmt.Errorf("store: reserve copy: %w", errors.Join(apperr.ErrPersistence, err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: reserve copy rows: %w", errors.Join(apperr.ErrPersistence, err))
	}
	if n == 0 {
		var exists int
		if scanErr := t.tx.QueryRow(`SELECT count(*) FROM items WHERE id = ?`, itemRef).Scan(&exists); scanErr != nil || exists == 0 {
			return apperr.ErrNotFound
		}
		return fmt.Errorf("no available copies of item %s: %w", itemRef, apperr.ErrValidation)
	}
	return nil
}

// RestoreCopy atomically gives one copy of the item back, inside the given
// unit of work. Restoring past total_copies indicates a double restore and
// fails the unit of work.
func (db *DB) RestoreCopy(t *Tx, itemRef string) error {
	res, err := t.tx.Exec(`
		UPDATE items SET available_copies = available_copies + 1
		WHERE id = ? AND available_copies < total_copies`, itemRef)
	if err != nil {
		return fmt.Errorf("store: restore copy: %w", errors.Join(apperr.ErrPersistence, err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: restore copy rows: %w", errors.Join(apperr.ErrPersistence, err))
	}
	if n == 0 {
		return fmt.Errorf("restore would exceed total copies of item %s: %w", itemRef, apperr.ErrConflict)
	}
	return nil
}
