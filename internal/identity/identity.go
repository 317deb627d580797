// Package identity resolves the acting principal and role for
// authorization checks.
package identity

import (
	"fmt"

	"github.com/starford/fehu/internal/apperr"
	"github.com/starford/fehu/internal/models"
)

// Resolver turns a bearer token into an acting principal.
type Resolver interface {
	Resolve(token string) (models.Actor, error)
}

// Principal is one configured token-to-actor mapping.
type Principal struct {
	Token string
	ID    string
	Role  models.Role
}

// StaticResolver resolves principals from a fixed token table supplied by
// configuration.
type StaticResolver struct {
	byToken map[string]models.Actor
}

// Verify *StaticResolver satisfies Resolver at compile time.
var _ Resolver = (*StaticResolver)(nil)

// NewStaticResolver builds a resolver from the configured principals.
func NewStaticResolver(principals []Principal) *StaticResolver {
	m := make(map[string]models.Actor, len(principals))
	for _, p := range principals {
		m[p.Token] = models.Actor{ID: p.ID, Role: p.Role}
	}
	return &StaticResolver{byToken: m}
}

// Resolve returns the actor for token, or ErrUnauthorized.
func (r *StaticResolver) Resolve(token string) (models.Actor, error) {
	a, ok := r.byToken[token]
	if !ok {
		return models.Actor{}, fmt.Errorf("unknown token: %w", apperr.ErrUnauthorized)
	}
	return a, nil
}
