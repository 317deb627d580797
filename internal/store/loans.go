package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/starford/fehu/internal/apperr"
	"github.com/starford/fehu/internal/models"
)

const loanColumns = `id, borrower_ref, staff_ref, item_ref, desired_start_date,
	planned_return_date, actual_return_date, shipped_at, status, total_fine,
	last_fined_on, rejection_reason, shipment_proof_ref, payment_proof_ref,
	receipt_number, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLoan(r rowScanner) (*models.Loan, error) {
	var (
		l         models.Loan
		actualRet sql.NullTime
		shippedAt sql.NullTime
		fine      string
	)
	err := r.Scan(&l.ID, &l.BorrowerRef, &l.StaffRef, &l.ItemRef,
		&l.DesiredStartDate, &l.PlannedReturnDate, &actualRet, &shippedAt,
		&l.Status, &fine, &l.LastFinedOn, &l.RejectionReason,
		&l.ShipmentProofRef, &l.PaymentProofRef, &l.ReceiptNumber,
		&l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if actualRet.Valid {
		t := actualRet.Time
		l.ActualReturnDate = &t
	}
	if shippedAt.Valid {
		t := shippedAt.Time
		l.ShippedAt = &t
	}
	l.TotalFine, err = decimal.NewFromString(fine)
	if err != nil {
		return nil, fmt.Errorf("store: parse total_fine %q: %w", fine, err)
	}
	return &l, nil
}

// InsertLoan writes a freshly submitted loan inside the given unit of work.
func (db *DB) InsertLoan(t *Tx, l *models.Loan) error {
	_, err := t.tx.Exec(`
		INSERT INTO loans (`+loanColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, l.ID, l.BorrowerRef, l.StaffRef, l.ItemRef, l.DesiredStartDate,
		l.PlannedReturnDate, nullTime(l.ActualReturnDate), nullTime(l.ShippedAt),
		l.Status, l.TotalFine.String(), l.LastFinedOn, l.RejectionReason,
		l.ShipmentProofRef, l.PaymentProofRef, l.ReceiptNumber,
		l.CreatedAt, l.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: insert loan: %w", errors.Join(apperr.ErrPersistence, err))
	}
	return nil
}

// GetLoan returns the loan with the given id.
func (db *DB) GetLoan(id string) (*models.Loan, error) {
	l, err := scanLoan(db.conn.QueryRow(`SELECT `+loanColumns+` FROM loans WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get loan: %w", err)
	}
	return l, nil
}

// GetLoanTx reads a loan inside the given unit of work.
func (db *DB) GetLoanTx(t *Tx, id string) (*models.Loan, error) {
	l, err := scanLoan(t.tx.QueryRow(`SELECT `+loanColumns+` FROM loans WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get loan: %w", err)
	}
	return l, nil
}

// UpdateLoan writes every mutable loan field, guarded by the status the
// caller read. Zero affected rows means the loan changed underneath us
// (ErrConflict) or never existed (ErrNotFound). PlannedReturnDate, the
// borrower, the item, and the receipt number are deliberately not updatable.
func (db *DB) UpdateLoan(t *Tx, l *models.Loan, expected models.Status) error {
	res, err := t.tx.Exec(`
		UPDATE loans SET
			staff_ref = ?, actual_return_date = ?, shipped_at = ?, status = ?,
			total_fine = ?, last_fined_on = ?, rejection_reason = ?,
			shipment_proof_ref = ?, payment_proof_ref = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, l.StaffRef, nullTime(l.ActualReturnDate), nullTime(l.ShippedAt), l.Status,
		l.TotalFine.String(), l.LastFinedOn, l.RejectionReason,
		l.ShipmentProofRef, l.PaymentProofRef, l.UpdatedAt,
		l.ID, expected)
	if err != nil {
		return fmt.Errorf("store: update loan: %w", errors.Join(apperr.ErrPersistence, err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: update loan rows: %w", errors.Join(apperr.ErrPersistence, err))
	}
	if n == 0 {
		var cur string
		if scanErr := t.tx.QueryRow(`SELECT status FROM loans WHERE id = ?`, l.ID).Scan(&cur); scanErr != nil {
			return apperr.ErrNotFound
		}
		return fmt.Errorf("store: loan %s moved from %s to %s: %w", l.ID, expected, cur, apperr.ErrConflict)
	}
	return nil
}

// ListLoans returns loans filtered by optional status and borrower,
// newest first, with the unpaginated total.
func (db *DB) ListLoans(status, borrowerRef string, limit, offset int) ([]models.Loan, int, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	where := ` WHERE 1=1`
	args := []any{}
	if status != "" {
		where += ` AND status = ?`
		args = append(args, status)
	}
	if borrowerRef != "" {
		where += ` AND borrower_ref = ?`
		args = append(args, borrowerRef)
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM loans`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("store: count loans: %w", err)
	}

	rows, err := db.conn.Query(`SELECT `+loanColumns+` FROM loans`+where+
		` ORDER BY created_at DESC LIMIT ? OFFSET ?`, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("store: list loans: %w", err)
	}
	defer rows.Close()

	var out []models.Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *l)
	}
	return out, total, rows.Err()
}

// ActiveLoanIDsDueBefore returns ids of ACTIVE, unreturned loans whose
// planned return date is strictly before cutoff. The sweeper re-reads each
// loan inside its own unit of work before acting on it.
func (db *DB) ActiveLoanIDsDueBefore(cutoff time.Time) ([]string, error) {
	return db.loanIDs(`
		SELECT id FROM loans
		WHERE status = ? AND actual_return_date IS NULL AND planned_return_date < ?
		ORDER BY planned_return_date`, models.StatusActive, cutoff)
}

// OverdueLoanIDs returns ids of unreturned loans currently in OVERDUE.
func (db *DB) OverdueLoanIDs() ([]string, error) {
	return db.loanIDs(`
		SELECT id FROM loans
		WHERE status = ? AND actual_return_date IS NULL
		ORDER BY planned_return_date`, models.StatusOverdue)
}

func (db *DB) loanIDs(query string, args ...any) ([]string, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: loan ids: %w", errors.Join(apperr.ErrPersistence, err))
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// OpenLoanCount returns, inside the unit of work, the number of loans on
// the item holding a reserved copy (every non-terminal status).
func (db *DB) OpenLoanCount(t *Tx, itemRef string) (int, error) {
	var n int
	err := t.tx.QueryRow(`
		SELECT count(*) FROM loans
		WHERE item_ref = ? AND status IN (?, ?, ?, ?, ?)
	`, itemRef, models.StatusPending, models.StatusApproved, models.StatusShipped,
		models.StatusActive, models.StatusOverdue).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("store: open loan count: %w", err)
	}
	return n, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
