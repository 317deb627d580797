// Package loanservice implements the loan lifecycle state machine: it
// validates and applies status transitions and coordinates their side
// effects (stock counter moves, fines, notifications) inside one unit of
// work per transition.
package loanservice

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/starford/fehu/internal/apperr"
	"github.com/starford/fehu/internal/artifacts"
	"github.com/starford/fehu/internal/clock"
	"github.com/starford/fehu/internal/models"
	"github.com/starford/fehu/internal/policy"
	"github.com/starford/fehu/internal/store"
)

// Service is the loan lifecycle engine.
type Service struct {
	db        *store.DB
	clk       clock.Clock
	artifacts artifacts.Store
	policy    *policy.Handle
}

// NewService creates a new loan service.
func NewService(db *store.DB, clk clock.Clock, art artifacts.Store, pol *policy.Handle) *Service {
	return &Service{db: db, clk: clk, artifacts: art, policy: pol}
}

// TransitionPayload carries the optional per-action inputs.
type TransitionPayload struct {
	Reason   string `json:"reason,omitempty"`    // required for reject
	ProofRef string `json:"proof_ref,omitempty"` // required for receive, optional for return
}

// roleAllowed maps each action to the roles that may trigger it.
// Approve, reject, ship, and confirm-receipt are staff actions; return is
// open to the borrower as well; marking overdue is reserved for the sweeper.
var roleAllowed = map[models.Action][]models.Role{
	models.ActionApprove:     {models.RoleStaff},
	models.ActionReject:      {models.RoleStaff},
	models.ActionShip:        {models.RoleStaff},
	models.ActionReceive:     {models.RoleStaff},
	models.ActionMarkOverdue: {models.RoleSystem},
	models.ActionReturn:      {models.RoleBorrower, models.RoleStaff},
}

// Submit creates a loan in PENDING, reserving one copy of the item. The
// planned return date is fixed here and never changes afterward.
func (s *Service) Submit(ctx context.Context, actor models.Actor, itemRef string, desiredStart time.Time) (*models.Loan, error) {
	if actor.Role != models.RoleBorrower && actor.Role != models.RoleStaff {
		return nil, fmt.Errorf("role %s may not submit loans: %w", actor.Role, apperr.ErrUnauthorized)
	}
	if itemRef == "" || desiredStart.IsZero() {
		return nil, fmt.Errorf("item and desired start date are required: %w", apperr.ErrValidation)
	}

	pol := s.policy.Current()
	now := s.clk.Now()

	loan := &models.Loan{
		ID:                uuid.NewString(),
		BorrowerRef:       actor.ID,
		ItemRef:           itemRef,
		DesiredStartDate:  desiredStart,
		PlannedReturnDate: desiredStart.AddDate(0, 0, pol.LoanPeriodDays),
		Status:            models.StatusPending,
		TotalFine:         decimal.Zero,
		ReceiptNumber:     receiptNumber(pol.ReceiptPrefix, now),
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	err := s.db.Execute(ctx, func(_ context.Context, tx *store.Tx) error {
		if err := s.db.ReserveCopy(tx, itemRef); err != nil {
			return err
		}
		if err := s.db.InsertLoan(tx, loan); err != nil {
			return err
		}
		return s.insertNotification(tx, "", loan, now)
	})
	if err != nil {
		return nil, err
	}
	return loan, nil
}

// Transition applies one action to a loan. The status write, any stock
// counter move, and the notification commit or roll back together; an
// optimistic status guard turns a concurrent change into ErrConflict.
func (s *Service) Transition(ctx context.Context, loanID string, action models.Action, actor models.Actor, payload TransitionPayload) (*models.Loan, error) {
	roles, known := roleAllowed[action]
	if !known {
		return nil, fmt.Errorf("unknown action %q: %w", action, apperr.ErrValidation)
	}
	if !slices.Contains(roles, actor.Role) {
		return nil, fmt.Errorf("role %s may not %s: %w", actor.Role, action, apperr.ErrUnauthorized)
	}

	now := s.clk.Now()
	eng := FineEngine{Grace: s.policy.Current().Grace()}

	var out *models.Loan
	err := s.db.Execute(ctx, func(_ context.Context, tx *store.Tx) error {
		loan, err := s.db.GetLoanTx(tx, loanID)
		if err != nil {
			return err
		}
		from := loan.Status
		if from.Terminal() {
			return fmt.Errorf("loan %s is %s: %w", loan.ID, from, apperr.ErrInvalidTransition)
		}
		if actor.Role == models.RoleBorrower && loan.BorrowerRef != actor.ID {
			return fmt.Errorf("loan belongs to another borrower: %w", apperr.ErrUnauthorized)
		}

		switch action {
		case models.ActionApprove:
			if from != models.StatusPending {
				return invalidEdge(from, action)
			}
			loan.Status = models.StatusApproved
			loan.StaffRef = actor.ID

		case models.ActionReject:
			if from != models.StatusPending {
				return invalidEdge(from, action)
			}
			if strings.TrimSpace(payload.Reason) == "" {
				return fmt.Errorf("rejection reason is required: %w", apperr.ErrValidation)
			}
			loan.Status = models.StatusRejected
			loan.StaffRef = actor.ID
			loan.RejectionReason = payload.Reason
			if err := s.db.RestoreCopy(tx, loan.ItemRef); err != nil {
				return err
			}

		case models.ActionShip:
			if from != models.StatusApproved {
				return invalidEdge(from, action)
			}
			loan.Status = models.StatusShipped
			loan.StaffRef = actor.ID
			t := now
			loan.ShippedAt = &t

		case models.ActionReceive:
			if from != models.StatusShipped {
				return invalidEdge(from, action)
			}
			if payload.ProofRef == "" {
				return fmt.Errorf("receipt proof is required: %w", apperr.ErrValidation)
			}
			loan.Status = models.StatusActive
			loan.ShipmentProofRef = payload.ProofRef
			s.compensateArtifact(tx, payload.ProofRef)

		case models.ActionMarkOverdue:
			if from != models.StatusActive {
				return invalidEdge(from, action)
			}
			if !eng.OverdueAt(loan.PlannedReturnDate, now) {
				return fmt.Errorf("grace period has not elapsed: %w", apperr.ErrValidation)
			}
			item, err := s.db.GetItemTx(tx, loan.ItemRef)
			if err != nil {
				return err
			}
			loan.Status = models.StatusOverdue
			loan.TotalFine = eng.InitialFine(item.DailyFineRate)
			loan.LastFinedOn = dateOf(now)

		case models.ActionReturn:
			if from != models.StatusActive && from != models.StatusOverdue {
				return invalidEdge(from, action)
			}
			item, err := s.db.GetItemTx(tx, loan.ItemRef)
			if err != nil {
				return err
			}
			loan.Status = models.StatusReturned
			t := now
			loan.ActualReturnDate = &t
			// Authoritative recomputation; overwrites any sweep-accrued total.
			loan.TotalFine = eng.ReturnFine(item.DailyFineRate, loan.PlannedReturnDate, now)
			if payload.ProofRef != "" {
				loan.PaymentProofRef = payload.ProofRef
				s.compensateArtifact(tx, payload.ProofRef)
			}
			if err := s.db.RestoreCopy(tx, loan.ItemRef); err != nil {
				return err
			}

		default:
			return fmt.Errorf("unknown action %q: %w", action, apperr.ErrValidation)
		}

		loan.UpdatedAt = now
		if err := s.db.UpdateLoan(tx, loan, from); err != nil {
			return err
		}
		if err := s.insertNotification(tx, from, loan, now); err != nil {
			return err
		}
		out = loan
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AccrueDailyFine adds one day's rate to a loan that entered the current
// sweep already OVERDUE, at most once per calendar day. The running total
// is advisory: the return-time computation overwrites it.
func (s *Service) AccrueDailyFine(ctx context.Context, loanID string, now time.Time) (bool, error) {
	var fined bool
	err := s.db.Execute(ctx, func(_ context.Context, tx *store.Tx) error {
		loan, err := s.db.GetLoanTx(tx, loanID)
		if err != nil {
			return err
		}
		if loan.Status != models.StatusOverdue || loan.ActualReturnDate != nil {
			return nil // moved on since enumeration; nothing to accrue
		}
		if loan.LastFinedOn != "" && loan.LastFinedOn >= dateOf(now) {
			return nil // already fined today
		}
		item, err := s.db.GetItemTx(tx, loan.ItemRef)
		if err != nil {
			return err
		}
		loan.TotalFine = loan.TotalFine.Add(item.DailyFineRate)
		loan.LastFinedOn = dateOf(now)
		loan.UpdatedAt = now
		if err := s.db.UpdateLoan(tx, loan, models.StatusOverdue); err != nil {
			return err
		}
		fined = true
		return nil
	})
	return fined, err
}

// GetLoan returns a loan snapshot.
func (s *Service) GetLoan(_ context.Context, id string) (*models.Loan, error) {
	return s.db.GetLoan(id)
}

// ListLoans returns loans filtered by optional status and borrower.
// Borrowers only ever see their own loans; the API layer enforces that by
// pinning borrowerRef for non-staff callers.
func (s *Service) ListLoans(_ context.Context, status, borrowerRef string, limit, offset int) ([]models.Loan, int, error) {
	return s.db.ListLoans(status, borrowerRef, limit, offset)
}

// Notifications returns every notification recorded for a loan.
func (s *Service) Notifications(_ context.Context, loanID string) ([]models.Notification, error) {
	if _, err := s.db.GetLoan(loanID); err != nil {
		return nil, err
	}
	return s.db.NotificationsForLoan(loanID)
}

func (s *Service) insertNotification(tx *store.Tx, from models.Status, loan *models.Loan, now time.Time) error {
	n, err := buildNotification(from, loan, now)
	if err != nil {
		return err
	}
	return s.db.InsertNotification(tx, n)
}

// compensateArtifact schedules deletion of an uploaded proof file if the
// surrounding unit of work rolls back; artifact storage is outside the
// transactional store.
func (s *Service) compensateArtifact(tx *store.Tx, ref string) {
	tx.OnRollback(func() {
		if err := s.artifacts.Delete(ref); err != nil {
			slog.Warn("loan: artifact cleanup failed",
				slog.String("ref", ref), slog.String("error", err.Error()))
		}
	})
}

func invalidEdge(from models.Status, action models.Action) error {
	return fmt.Errorf("action %s not allowed from %s: %w", action, from, apperr.ErrInvalidTransition)
}

func dateOf(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

const receiptAlphabet = "ABCDEFGHJKMNPQRSTVWXYZ23456789"

// receiptNumber builds the client-facing identifier: prefix, truncated
// timestamp, short random suffix. A convenience identifier, not a
// uniqueness guarantee.
func receiptNumber(prefix string, now time.Time) string {
	suffix := make([]byte, 4)
	_, _ = rand.Read(suffix)
	for i, b := range suffix {
		suffix[i] = receiptAlphabet[int(b)%len(receiptAlphabet)]
	}
	return fmt.Sprintf("%s-%s-%s", prefix, now.Format("0601021504"), suffix)
}
