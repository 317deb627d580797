package store

import (
	"errors"
	"fmt"

	"github.com/starford/fehu/internal/apperr"
	"github.com/starford/fehu/internal/models"
)

// InsertNotification records a notification inside the given unit of work,
// so a transition that fails to commit never leaves an orphaned row.
func (db *DB) InsertNotification(t *Tx, n *models.Notification) error {
	res, err := t.tx.Exec(`
		INSERT INTO notifications (loan_ref, recipient_ref, message, type, read, created_at)
		VALUES (?, ?, ?, ?, 0, ?)
	`, n.LoanRef, n.RecipientRef, n.Message, n.Type, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: insert notification: %w", errors.Join(apperr.ErrPersistence, err))
	}
	n.ID, _ = res.LastInsertId()
	return nil
}

// NotificationsForLoan returns every notification recorded for a loan,
// oldest first.
func (db *DB) NotificationsForLoan(loanRef string) ([]models.Notification, error) {
	rows, err := db.conn.Query(`
		SELECT id, loan_ref, recipient_ref, message, type, read, created_at
		FROM notifications WHERE loan_ref = ? ORDER BY id`, loanRef)
	if err != nil {
		return nil, fmt.Errorf("store: notifications: %w", err)
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.LoanRef, &n.RecipientRef, &n.Message, &n.Type, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
