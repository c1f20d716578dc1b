package auth

import "context"

type identityKey struct{}

// WithIdentity attaches id to ctx.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the caller, or nil.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey{}).(*Identity)
	return id
}

// ScopeKeyFromContext returns the cache scope of the caller in ctx, or
// PublicScope when there is none.
func ScopeKeyFromContext(ctx context.Context) string {
	return IdentityFromContext(ctx).ScopeKey()
}
