package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/supabase-community/gotrue-go"
)

// GoTrueResolver asks the Supabase Auth server who owns a session token.
type GoTrueResolver struct {
	client gotrue.Client
}

// NewGoTrueResolver builds a resolver for the project at supabaseURL.
func NewGoTrueResolver(supabaseURL, anonKey string) *GoTrueResolver {
	client := gotrue.New("", anonKey).WithCustomGoTrueURL(strings.TrimRight(supabaseURL, "/") + "/auth/v1")
	return &GoTrueResolver{client: client}
}

// Resolve fetches the user behind bearer.
func (r *GoTrueResolver) Resolve(_ context.Context, bearer string) (Identity, error) {
	user, err := r.client.WithToken(bearer).GetUser()
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if user == nil || user.ID == uuid.Nil {
		return Identity{}, ErrInvalidToken
	}
	return Identity{UserID: user.ID.String(), Email: user.Email}, nil
}
