// Package auth implements the two authentication modes SPEC_FULL.md
// §4.3 specifies for the orchestrator's RPC surface: a constant-time
// shared-secret compare (spec.md's literal requirement) and an HS256
// bearer JWT mode for interactive/admin use. Both fail closed on
// misconfiguration.
package auth

import "context"

type ctxKey struct{}

// Identity is what a successful authentication attaches to the request
// context. Subject is empty for shared-secret mode (there is no
// principal, only a shared credential); it carries the JWT subject for
// bearer mode.
type Identity struct {
	Mode    string // "shared_secret" or "bearer_jwt"
	Subject string
}

// WithIdentity returns a new context with id attached.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IdentityFromContext extracts the authenticated identity from ctx, if
// any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}
