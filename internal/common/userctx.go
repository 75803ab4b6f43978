package common

import (
	"context"
)

// UserContext carries the identity resolved for a request. Every service
// operation reads the acting user from here rather than from global state.
type UserContext struct {
	UserID int64
}

type contextKey int

const userContextKey contextKey = iota

// WithUserContext stores a UserContext in the request context.
func WithUserContext(ctx context.Context, uc *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey, uc)
}

// WithUserID is shorthand for WithUserContext with only a user id.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return WithUserContext(ctx, &UserContext{UserID: userID})
}

// UserContextFromContext retrieves the UserContext from context, or nil if absent.
func UserContextFromContext(ctx context.Context) *UserContext {
	uc, _ := ctx.Value(userContextKey).(*UserContext)
	return uc
}

// ResolveUserID returns the UserID from context.
// Returns ErrUnauthorized when no identity has been attached.
func ResolveUserID(ctx context.Context) (int64, error) {
	if uc := UserContextFromContext(ctx); uc != nil && uc.UserID > 0 {
		return uc.UserID, nil
	}
	return 0, ErrUnauthorized
}
