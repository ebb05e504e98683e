// Package auth provides authentication context helpers.
//
// This package is designed to be imported by both middleware and handler
// packages without causing import cycles.
package auth

import (
	"context"
	"net/http"

	"github.com/DukeRupert/mundo/internal/domain"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	userContextKey  contextKey = "user"
	tokenContextKey contextKey = "session_token"
)

// GetUser retrieves the authenticated user from the context.
//
// Returns nil if no user is authenticated.
func GetUser(ctx context.Context) *domain.User {
	user, ok := ctx.Value(userContextKey).(*domain.User)
	if !ok {
		return nil
	}
	return user
}

// GetUserFromRequest retrieves the authenticated user from the request context.
func GetUserFromRequest(r *http.Request) *domain.User {
	return GetUser(r.Context())
}

// SetUser stores a user in the context.
func SetUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// GetSessionToken returns the raw session token the user was resolved from,
// or "" when the request is anonymous.
func GetSessionToken(ctx context.Context) string {
	token, _ := ctx.Value(tokenContextKey).(string)
	return token
}

// SetSessionToken stores the raw session token in the context.
func SetSessionToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenContextKey, token)
}
