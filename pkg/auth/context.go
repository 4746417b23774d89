package auth

import "context"

type contextKey struct{}

// WithUser returns a context carrying the authenticated user. The HTTP
// middleware attaches it; handlers read it back with UserFrom.
func WithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, contextKey{}, user)
}

// UserFrom returns the authenticated user attached to ctx, or nil when
// the request was never authenticated.
func UserFrom(ctx context.Context) *User {
	user, _ := ctx.Value(contextKey{}).(*User)
	return user
}
