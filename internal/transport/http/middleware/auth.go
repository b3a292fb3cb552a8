package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Modett/modett-ecommerce-platform-sub000/internal/domain"
)

type contextKey string

const principalKey contextKey = "principal"

// TokenValidator resolves a Bearer access token to its principal.
type TokenValidator interface {
	ValidateToken(ctx context.Context, accessToken string) (*domain.Principal, error)
}

// Auth returns middleware that validates the Bearer token and injects the principal into context.
func Auth(v TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeJSONError(w, http.StatusUnauthorized, "missing or invalid authorization header")
				return
			}
			p, err := v.ValidateToken(r.Context(), strings.TrimPrefix(authHeader, "Bearer "))
			switch {
			case errors.Is(err, domain.ErrForbidden):
				writeJSONError(w, http.StatusForbidden, err.Error())
				return
			case errors.Is(err, domain.ErrExpired):
				writeJSONError(w, http.StatusUnauthorized, "token expired")
				return
			case errors.Is(err, domain.ErrUnauthorized):
				writeJSONError(w, http.StatusUnauthorized, "invalid token")
				return
			case err != nil:
				writeJSONError(w, http.StatusServiceUnavailable, "could not validate token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p *domain.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext extracts the authenticated principal from the request context.
func PrincipalFromContext(ctx context.Context) (*domain.Principal, bool) {
	p, ok := ctx.Value(principalKey).(*domain.Principal)
	return p, ok
}
