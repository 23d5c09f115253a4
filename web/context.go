package web

import (
	"context"

	"github.com/artpar/quotagate/adapters/auth"
)

type contextKey string

const claimsKey contextKey = "claims"

// withClaims stores the authenticated caller's claims in the request context.
func withClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// getClaims retrieves the authenticated caller's claims, if any.
func getClaims(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*auth.Claims)
	return claims, ok
}
