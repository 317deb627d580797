// Package models defines the domain types for Fehu.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a loan. The set is closed: every
// transition site switches exhaustively over these values.
type Status string

// Loan statuses.
const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusShipped  Status = "SHIPPED"
	StatusActive   Status = "ACTIVE"
	StatusRejected Status = "REJECTED"
	StatusOverdue  Status = "OVERDUE"
	StatusReturned Status = "RETURNED"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusShipped, StatusActive,
		StatusRejected, StatusOverdue, StatusReturned:
		return true
	}
	return false
}

// Terminal reports whether s is absorbing: no transition is ever applied
// to a loan once it reaches a terminal status.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusReturned
}

// Action is a trigger that may move a loan along one edge of the lifecycle.
type Action string

// Loan actions.
const (
	ActionApprove     Action = "approve"
	ActionReject      Action = "reject"
	ActionShip        Action = "ship"
	ActionReceive     Action = "receive"
	ActionMarkOverdue Action = "mark_overdue"
	ActionReturn      Action = "return"
)

// Role of the acting principal.
type Role string

// Principal roles. RoleSystem is reserved for the sweeper; it bypasses
// role checks but never status checks.
const (
	RoleBorrower Role = "borrower"
	RoleStaff    Role = "staff"
	RoleSystem   Role = "system"
)

// Actor is the authenticated principal performing an action.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// Loan is a borrowing record tying one borrower to one item for a bounded,
// fixed-length period. PlannedReturnDate is fixed at creation and never
// changes afterward.
type Loan struct {
	ID                string          `json:"id"`
	BorrowerRef       string          `json:"borrower_ref"`
	StaffRef          string          `json:"staff_ref,omitempty"`
	ItemRef           string          `json:"item_ref"`
	DesiredStartDate  time.Time       `json:"desired_start_date"`
	PlannedReturnDate time.Time       `json:"planned_return_date"`
	ActualReturnDate  *time.Time      `json:"actual_return_date,omitempty"`
	ShippedAt         *time.Time      `json:"shipped_at,omitempty"`
	Status            Status          `json:"status"`
	TotalFine         decimal.Decimal `json:"total_fine"`
	LastFinedOn       string          `json:"last_fined_on,omitempty"` // YYYY-MM-DD of the last sweep increment
	RejectionReason   string          `json:"rejection_reason,omitempty"`
	ShipmentProofRef  string          `json:"shipment_proof_ref,omitempty"`
	PaymentProofRef   string          `json:"payment_proof_ref,omitempty"`
	ReceiptNumber     string          `json:"receipt_number"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Item is a catalog entity referenced by loans. The core never creates or
// deletes items; it only moves AvailableCopies through the stock ledger.
type Item struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	TotalCopies     int             `json:"total_copies"`
	AvailableCopies int             `json:"available_copies"`
	DailyFineRate   decimal.Decimal `json:"daily_fine_rate"`
}

// Notification is a message recorded for a recipient on a loan transition.
// The read flag is owned by a different collaborator; the core only creates.
type Notification struct {
	ID           int64     `json:"id"`
	LoanRef      string    `json:"loan_ref"`
	RecipientRef string    `json:"recipient_ref"`
	Message      string    `json:"message"`
	Type         string    `json:"type"`
	Read         bool      `json:"read"`
	CreatedAt    time.Time `json:"created_at"`
}

// SweepReport summarises one overdue sweep run.
type SweepReport struct {
	Skipped      bool      `json:"skipped"`
	StartedAt    time.Time `json:"started_at"`
	Processed    int       `json:"processed"`
	Transitioned int       `json:"transitioned"`
	Fined        int       `json:"fined"`
	Errored      int       `json:"errored"`
}
