// Package store provides the SQLite-backed transactional store for loans,
// item stock counters, notifications, and sweep run markers.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS loans (
	id                  TEXT PRIMARY KEY,
	borrower_ref        TEXT NOT NULL,
	staff_ref           TEXT NOT NULL DEFAULT '',
	item_ref            TEXT NOT NULL,
	desired_start_date  DATETIME NOT NULL,
	planned_return_date DATETIME NOT NULL,
	actual_return_date  DATETIME,
	shipped_at          DATETIME,
	status              TEXT NOT NULL,
	total_fine          TEXT NOT NULL DEFAULT '0',
	last_fined_on       TEXT NOT NULL DEFAULT '',
	rejection_reason    TEXT NOT NULL DEFAULT '',
	shipment_proof_ref  TEXT NOT NULL DEFAULT '',
	payment_proof_ref   TEXT NOT NULL DEFAULT '',
	receipt_number      TEXT NOT NULL DEFAULT '',
	created_at          DATETIME NOT NULL,
	updated_at          DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_loans_status   ON loans(status);
CREATE INDEX IF NOT EXISTS idx_loans_borrower ON loans(borrower_ref);
CREATE INDEX IF NOT EXISTS idx_loans_item     ON loans(item_ref);

CREATE TABLE IF NOT EXISTS items (
	id               TEXT PRIMARY KEY,
	title            TEXT NOT NULL DEFAULT '',
	total_copies     INTEGER NOT NULL DEFAULT 0,
	available_copies INTEGER NOT NULL DEFAULT 0,
	daily_fine_rate  TEXT NOT NULL DEFAULT '0'
);

CREATE TABLE IF NOT EXISTS notifications (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	loan_ref      TEXT NOT NULL,
	recipient_ref TEXT NOT NULL,
	message       TEXT NOT NULL,
	type          TEXT NOT NULL,
	read          INTEGER NOT NULL DEFAULT 0,
	created_at    DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notifications_loan ON notifications(loan_ref);

CREATE TABLE IF NOT EXISTS sweep_runs (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	status       TEXT NOT NULL,
	started_at   DATETIME NOT NULL,
	finished_at  DATETIME,
	processed    INTEGER NOT NULL DEFAULT 0,
	transitioned INTEGER NOT NULL DEFAULT 0,
	fined        INTEGER NOT NULL DEFAULT 0,
	errored      INTEGER NOT NULL DEFAULT 0
);
`

// DB wraps a sql.DB with loan-store operations.
type DB struct {
	conn      *sql.DB
	txTimeout time.Duration
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &DB{conn: conn, txTimeout: 5 * time.Second}, nil
}

// SetTxTimeout overrides the per-unit-of-work timeout (default 5s).
func (db *DB) SetTxTimeout(d time.Duration) {
	if d > 0 {
		db.txTimeout = d
	}
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
