package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/fehu/internal/models"
)

const dateLayout = "2006-01-02"

// SubmitLoanRequest is the request body for submitting a loan.
type SubmitLoanRequest struct {
	ItemRef          string `json:"item_ref"`
	DesiredStartDate string `json:"desired_start_date"` // YYYY-MM-DD
}

// Validate validates the submission payload.
func (r SubmitLoanRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ItemRef, validation.Required),
		validation.Field(&r.DesiredStartDate, validation.Required, validation.Date(dateLayout)),
	)
}

// TransitionRequest is the optional request body for loan actions.
type TransitionRequest struct {
	Reason   string `json:"reason,omitempty"`
	ProofRef string `json:"proof_ref,omitempty"`
}

// UpsertItemRequest is the request body for registering a catalog item.
type UpsertItemRequest struct {
	Title         string `json:"title"`
	TotalCopies   int    `json:"total_copies"`
	DailyFineRate string `json:"daily_fine_rate"`
}

// Validate validates the item payload.
func (r UpsertItemRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required),
		validation.Field(&r.TotalCopies, validation.Required, validation.Min(1)),
		validation.Field(&r.DailyFineRate, validation.Required),
	)
}

// LoanListResponse wraps paginated loan listings.
type LoanListResponse struct {
	Loans []models.Loan `json:"loans"`
	Total int           `json:"total"`
}

// NotificationListResponse wraps a loan's notifications.
type NotificationListResponse struct {
	Notifications []models.Notification `json:"notifications"`
}

// ProofUploadResponse is returned after a successful proof upload.
type ProofUploadResponse struct {
	Ref  string `json:"ref"`
	Size int64  `json:"size"`
}
