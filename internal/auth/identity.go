package auth

import (
	"context"
	"fmt"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

// IdentityContextKey is the context key for the authenticated identity
const IdentityContextKey contextKey = "identity"

// Identity is the request-scoped authenticated caller. It is installed once
// per request and never mutated afterwards.
type Identity struct {
	Subject     string
	Authorities []string
	RemoteAddr  string
}

// HasAuthority checks if the identity holds authority
func (i *Identity) HasAuthority(authority string) bool {
	for _, a := range i.Authorities {
		if a == authority {
			return true
		}
	}
	return false
}

// HasAnyAuthority checks if the identity holds any of the authorities
func (i *Identity) HasAnyAuthority(authorities ...string) bool {
	for _, required := range authorities {
		if i.HasAuthority(required) {
			return true
		}
	}
	return false
}

// WithIdentity returns a copy of ctx carrying id
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, IdentityContextKey, id)
}

// GetIdentity extracts the Identity from a request context
func GetIdentity(ctx context.Context) (*Identity, error) {
	id, ok := ctx.Value(IdentityContextKey).(*Identity)
	if !ok || id == nil {
		return nil, fmt.Errorf("no identity in context")
	}
	return id, nil
}
