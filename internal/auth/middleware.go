package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/greg5320/mappool/internal/domain"
)

type contextKey string

const identityKey contextKey = "auth_identity"

// IdentityResolver maps a session token to an identity.
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (domain.Identity, error)
}

// ErrorWriter renders an error response.
type ErrorWriter func(w http.ResponseWriter, err error)

// IdentityFromContext returns the identity stored by Authenticate, or the
// anonymous identity.
func IdentityFromContext(ctx context.Context) domain.Identity {
	id, _ := ctx.Value(identityKey).(domain.Identity)
	return id
}

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// Authenticate resolves the session cookie into an Identity for every request.
// A missing cookie continues as anonymous; a cookie that does not resolve
// fails the request.
func Authenticate(resolver IdentityResolver, cookieName string, writeErr ErrorWriter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var token string
			if c, err := r.Cookie(cookieName); err == nil {
				token = c.Value
			}

			id, err := resolver.Resolve(r.Context(), token)
			if err != nil {
				if domain.HasCode(err, domain.CodeDependencyFailure) || domain.HasCode(err, domain.CodeInternal) {
					logger.Error("session resolution failed", "error", err, "path", r.URL.Path)
				}
				writeErr(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}
