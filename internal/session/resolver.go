// Package session maps session tokens to request identities.
package session

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/greg5320/mappool/internal/domain"
	"github.com/greg5320/mappool/internal/repository"
)

// Resolver turns a session token into an Identity.
type Resolver struct {
	store Store
	db    repository.DBTX
	users repository.UserRepository
}

// NewResolver creates a Resolver.
func NewResolver(store Store, db repository.DBTX, users repository.UserRepository) *Resolver {
	return &Resolver{store: store, db: db, users: users}
}

// Resolve returns the anonymous identity for an empty token. A token with no
// stored session is an error even where anonymous access is allowed. A
// session naming an unknown user resolves to anonymous.
func (r *Resolver) Resolve(ctx context.Context, token string) (domain.Identity, error) {
	if token == "" {
		return domain.Anonymous(), nil
	}

	raw, found, err := r.store.Get(ctx, token)
	if err != nil {
		return domain.Anonymous(), domain.ErrDependency("session store unavailable", err)
	}
	if !found {
		return domain.Anonymous(), domain.ErrAuthenticationRequired("invalid session")
	}
	if !utf8.Valid(raw) {
		return domain.Anonymous(), domain.ErrAuthenticationRequired("invalid session")
	}

	username := StripQuotes(string(raw))
	user, err := r.users.FindByUsername(ctx, r.db, username)
	if err != nil {
		return domain.Anonymous(), domain.ErrInternal("find session user", err)
	}
	if user == nil {
		return domain.Anonymous(), nil
	}
	return user.Identity(), nil
}

// StripQuotes removes one surrounding pair of single quotes.
func StripQuotes(v string) string {
	if len(v) >= 2 && strings.HasPrefix(v, "'") && strings.HasSuffix(v, "'") {
		return v[1 : len(v)-1]
	}
	return v
}
