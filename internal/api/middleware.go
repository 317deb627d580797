// Package api implements the Fehu REST API using chi.
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/starford/fehu/internal/identity"
	"github.com/starford/fehu/internal/models"
)

type ctxKey int

const actorKey ctxKey = iota

// ActorMiddleware resolves the acting principal and stores it in the
// request context.
//
// In token mode, requests must carry "Authorization: Bearer <token>" and
// the token must resolve against the principal table. In disabled mode the
// actor is read from the X-Actor-Id / X-Actor-Role headers, defaulting to
// a staff principal — local dev only.
func ActorMiddleware(enabled bool, resolver identity.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var actor models.Actor
			if enabled {
				auth := r.Header.Get("Authorization")
				if !strings.HasPrefix(auth, "Bearer ") {
					writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
					return
				}
				resolved, err := resolver.Resolve(strings.TrimPrefix(auth, "Bearer "))
				if err != nil {
					writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
					return
				}
				actor = resolved
			} else {
				actor = models.Actor{
					ID:   headerOr(r, "X-Actor-Id", "dev"),
					Role: models.Role(headerOr(r, "X-Actor-Role", string(models.RoleStaff))),
				}
			}
			ctx := context.WithValue(r.Context(), actorKey, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func headerOr(r *http.Request, key, fallback string) string {
	if v := r.Header.Get(key); v != "" {
		return v
	}
	return fallback
}

// actorFrom returns the principal placed in the context by ActorMiddleware.
func actorFrom(r *http.Request) models.Actor {
	a, _ := r.Context().Value(actorKey).(models.Actor)
	return a
}
