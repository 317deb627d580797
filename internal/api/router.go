package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/starford/fehu/internal/artifacts"
	"github.com/starford/fehu/internal/identity"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether the bearer-token principal table is
// enforced; when disabled the actor comes from dev headers.
func NewRouter(h *Handler, art artifacts.Store, authEnabled bool, resolver identity.Resolver) chi.Router {
	ph := NewProofHandler(art)

	r := chi.NewRouter()
	r.Use(ActorMiddleware(authEnabled, resolver))

	// Loan lifecycle.
	r.Post("/loans", h.SubmitLoan)
	r.Get("/loans", h.ListLoans)
	r.Get("/loans/{id}", h.GetLoan)
	r.Get("/loans/{id}/notifications", h.LoanNotifications)
	r.Post("/loans/{id}/{action}", h.TransitionLoan)

	// Catalog seeding.
	r.Put("/items/{id}", h.UpsertItem)
	r.Get("/items/{id}", h.GetItem)

	// Proof uploads.
	r.Post("/proofs", ph.Upload)

	// Out-of-cadence sweep trigger.
	r.Post("/sweep", h.Sweep)

	return r
}
