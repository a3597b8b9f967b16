// Package auth resolves the caller's identity from a session credential.
package auth

import (
	"context"
	"errors"
)

// ErrInvalidToken is returned when a session credential cannot be resolved.
var ErrInvalidToken = errors.New("auth: invalid or expired token")

// Identity is an authenticated caller.
type Identity struct {
	UserID string
	Email  string
}

// Resolver turns a bearer credential into an Identity.
type Resolver interface {
	Resolve(ctx context.Context, bearer string) (Identity, error)
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the caller's identity, if one was resolved.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	if !ok || id.UserID == "" {
		return Identity{}, false
	}
	return id, true
}
