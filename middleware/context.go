package middleware

import (
	"context"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/ryanvade/infra-demo-lnl/authn"
)

// Context key type to avoid collisions
type contextKey string

// ClaimsKey is the context key for verified token claims
const ClaimsKey contextKey = "claims"

// GetRequestIDFromContext retrieves the request ID set by chi's RequestID middleware
func GetRequestIDFromContext(ctx context.Context) string {
	return chimiddleware.GetReqID(ctx)
}

// ClaimsFromContext retrieves verified claims from context
func ClaimsFromContext(ctx context.Context) *authn.Claims {
	if val := ctx.Value(ClaimsKey); val != nil {
		if claims, ok := val.(*authn.Claims); ok {
			return claims
		}
	}
	return nil
}

// WithClaims adds verified claims to the context
func WithClaims(ctx context.Context, claims *authn.Claims) context.Context {
	return context.WithValue(ctx, ClaimsKey, claims)
}
