// Package identity verifies bearer tokens, carries the caller's identity
// through request contexts, maps permissions to member groups and talks to
// the identity provider's user directory.
package identity

import (
	"context"
	"slices"
)

// Identity is a verified caller.
type Identity struct {
	Subject     string
	Permissions []string
}

// Has reports whether the identity carries permission.
func (id Identity) Has(permission string) bool {
	return slices.Contains(id.Permissions, permission)
}

type identityContextKey struct{}

// WithIdentity stores a verified identity in context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, identityContextKey{}, id)
}

// FromContext returns the identity stored in context, if any.
func FromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	return id, ok && id.Subject != ""
}
