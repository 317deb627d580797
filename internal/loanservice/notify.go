package loanservice

import (
	"fmt"
	"time"

	"github.com/starford/fehu/internal/models"
)

// edge identifies one transition for the notification table. The zero
// from-status keys the submission notification.
type edge struct {
	from, to models.Status
}

type notifyTemplate struct {
	typ    string
	render func(l *models.Loan) string
}

const dateLayout = "2006-01-02"

// notifyTable maps each transition to its message template and type tag.
// Every legal edge of the state machine has exactly one entry.
var notifyTable = map[edge]notifyTemplate{
	{"", models.StatusPending}: {
		typ: "loan_submitted",
		render: func(l *models.Loan) string {
			return fmt.Sprintf("Loan request %s received. Planned return date is %s.",
				l.ReceiptNumber, l.PlannedReturnDate.Format(dateLayout))
		},
	},
	{models.StatusPending, models.StatusApproved}: {
		typ: "loan_approved",
		render: func(l *models.Loan) string {
			return fmt.Sprintf("Loan %s has been approved and will be prepared for shipment.", l.ReceiptNumber)
		},
	},
	{models.StatusPending, models.StatusRejected}: {
		typ: "loan_rejected",
		render: func(l *models.Loan) string {
			return fmt.Sprintf("Loan request %s was rejected: %s", l.ReceiptNumber, l.RejectionReason)
		},
	},
	{models.StatusApproved, models.StatusShipped}: {
		typ: "loan_shipped",
		render: func(l *models.Loan) string {
			return fmt.Sprintf("Loan %s has been shipped. Confirm receipt when it arrives.", l.ReceiptNumber)
		},
	},
	{models.StatusShipped, models.StatusActive}: {
		typ: "loan_active",
		render: func(l *models.Loan) string {
			return fmt.Sprintf("Receipt of loan %s confirmed. Return by %s.",
				l.ReceiptNumber, l.PlannedReturnDate.Format(dateLayout))
		},
	},
	{models.StatusActive, models.StatusOverdue}: {
		typ: "loan_overdue",
		render: func(l *models.Loan) string {
			return fmt.Sprintf("Loan %s is overdue. Fine accrued so far: %s.",
				l.ReceiptNumber, l.TotalFine.String())
		},
	},
	{models.StatusActive, models.StatusReturned}: {
		typ: "loan_returned",
		render: func(l *models.Loan) string {
			return fmt.Sprintf("Loan %s returned. Total fine: %s.", l.ReceiptNumber, l.TotalFine.String())
		},
	},
	{models.StatusOverdue, models.StatusReturned}: {
		typ: "loan_returned",
		render: func(l *models.Loan) string {
			return fmt.Sprintf("Loan %s returned. Total fine: %s.", l.ReceiptNumber, l.TotalFine.String())
		},
	},
}

// buildNotification renders the notification row for the transition that
// moved l from the given status to its current one.
func buildNotification(from models.Status, l *models.Loan, now time.Time) (*models.Notification, error) {
	tpl, ok := notifyTable[edge{from, l.Status}]
	if !ok {
		return nil, fmt.Errorf("no notification template for %s -> %s", from, l.Status)
	}
	return &models.Notification{
		LoanRef:      l.ID,
		RecipientRef: l.BorrowerRef,
		Message:      tpl.render(l),
		Type:         tpl.typ,
		CreatedAt:    now,
	}, nil
}
