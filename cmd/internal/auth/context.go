package auth

import (
	"context"

	"kite/cmd/identity"
)

type ctxKey struct{}

// WithIdentity returns ctx carrying u.
func WithIdentity(ctx context.Context, u identity.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// IdentityFromContext returns the identity attached by the gate.
func IdentityFromContext(ctx context.Context) (identity.User, bool) {
	u, ok := ctx.Value(ctxKey{}).(identity.User)
	return u, ok && u.ID != ""
}
