// Package context provides request-scoped values extraction.
package context

import (
	"context"
)

// SystemUser is recorded as created_by when no user is attached to ctx
// (worker jobs, seeds, migrations).
const SystemUser = "system"

// UserContext identifies the shop staff member performing an operation.
type UserContext struct {
	UserID   string
	Username string
	Role     string
}

type userContextKey struct{}

// WithUser adds UserContext to context.
func WithUser(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// GetUser returns UserContext from context.
func GetUser(ctx context.Context) *UserContext {
	if v, ok := ctx.Value(userContextKey{}).(*UserContext); ok {
		return v
	}
	return nil
}

// GetUserID returns user ID from context or empty string.
func GetUserID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.UserID
	}
	return ""
}

// Actor returns the value stored in created_by columns: the username when
// known, then the user id, then SystemUser.
func Actor(ctx context.Context) string {
	u := GetUser(ctx)
	switch {
	case u == nil:
		return SystemUser
	case u.Username != "":
		return u.Username
	case u.UserID != "":
		return u.UserID
	default:
		return SystemUser
	}
}
