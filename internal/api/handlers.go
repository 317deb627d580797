package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/starford/fehu/internal/clock"
	"github.com/starford/fehu/internal/loanservice"
	"github.com/starford/fehu/internal/models"
	"github.com/starford/fehu/internal/store"
	"github.com/starford/fehu/internal/sweeper"
)

// Handler holds API route handlers.
type Handler struct {
	svc *loanservice.Service
	swp *sweeper.Sweeper
	db  *store.DB
	clk clock.Clock
}

// NewHandler creates a new Handler.
func NewHandler(svc *loanservice.Service, swp *sweeper.Sweeper, db *store.DB, clk clock.Clock) *Handler {
	return &Handler{svc: svc, swp: swp, db: db, clk: clk}
}

// SubmitLoan handles POST /loans.
func (h *Handler) SubmitLoan(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req SubmitLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	start, _ := time.Parse(dateLayout, req.DesiredStartDate)

	loan, err := h.svc.Submit(r.Context(), actorFrom(r), req.ItemRef, start)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, loan)
}

// GetLoan handles GET /loans/{id}.
func (h *Handler) GetLoan(w http.ResponseWriter, r *http.Request) {
	loan, err := h.svc.GetLoan(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	actor := actorFrom(r)
	if actor.Role == models.RoleBorrower && loan.BorrowerRef != actor.ID {
		writeJSON(w, http.StatusForbidden, errorBody("forbidden"))
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

// ListLoans handles GET /loans. Borrowers only ever see their own loans.
func (h *Handler) ListLoans(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	status := q.Get("status")

	actor := actorFrom(r)
	borrower := q.Get("borrower")
	if actor.Role == models.RoleBorrower {
		borrower = actor.ID
	}

	loans, total, err := h.svc.ListLoans(r.Context(), status, borrower, limit, offset)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if loans == nil {
		loans = []models.Loan{}
	}
	writeJSON(w, http.StatusOK, LoanListResponse{Loans: loans, Total: total})
}

// TransitionLoan handles POST /loans/{id}/{action}. The body is optional;
// reject requires a reason and receive requires a proof ref.
func (h *Handler) TransitionLoan(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	id := chi.URLParam(r, "id")
	action := models.Action(chi.URLParam(r, "action"))

	var req TransitionRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
			return
		}
	}

	loan, err := h.svc.Transition(r.Context(), id, action, actorFrom(r), loanservice.TransitionPayload{
		Reason:   req.Reason,
		ProofRef: req.ProofRef,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

// LoanNotifications handles GET /loans/{id}/notifications.
func (h *Handler) LoanNotifications(w http.ResponseWriter, r *http.Request) {
	ns, err := h.svc.Notifications(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	if ns == nil {
		ns = []models.Notification{}
	}
	writeJSON(w, http.StatusOK, NotificationListResponse{Notifications: ns})
}

// UpsertItem handles PUT /items/{id}. Staff only; this is catalog seeding —
// the available counter is otherwise owned by the stock ledger.
func (h *Handler) UpsertItem(w http.ResponseWriter, r *http.Request) {
	if actorFrom(r).Role != models.RoleStaff {
		writeJSON(w, http.StatusForbidden, errorBody("staff only"))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req UpsertItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	rate, err := decimal.NewFromString(req.DailyFineRate)
	if err != nil || rate.IsNegative() {
		writeJSON(w, http.StatusBadRequest, errorBody("daily_fine_rate must be a non-negative decimal"))
		return
	}

	item := &models.Item{
		ID:              chi.URLParam(r, "id"),
		Title:           req.Title,
		TotalCopies:     req.TotalCopies,
		AvailableCopies: req.TotalCopies, // only applied on first insert
		DailyFineRate:   rate,
	}
	if err := h.db.UpsertItem(item); err != nil {
		writeAppError(w, err)
		return
	}
	stored, err := h.db.GetItem(item.ID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stored)
}

// GetItem handles GET /items/{id}.
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.db.GetItem(chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// Sweep handles POST /sweep: staff-triggered out-of-cadence sweep run.
func (h *Handler) Sweep(w http.ResponseWriter, r *http.Request) {
	if actorFrom(r).Role != models.RoleStaff {
		writeJSON(w, http.StatusForbidden, errorBody("staff only"))
		return
	}
	report, err := h.swp.SweepOnce(r.Context(), h.clk.Now())
	if err != nil {
		writeAppError(w, fmt.Errorf("sweep failed: %w", err))
		return
	}
	status := http.StatusOK
	if report.Skipped {
		status = http.StatusConflict
	}
	writeJSON(w, status, report)
}
