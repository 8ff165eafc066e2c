package revisionable

import "context"

type userKey struct{}

// WithUser returns a context carrying the current user's name, used as the
// author of StartCurrentUserTransaction.
func WithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// UserFromContext returns the current user set by WithUser.
func UserFromContext(ctx context.Context) (string, bool) {
	user, ok := ctx.Value(userKey{}).(string)
	return user, ok && user != ""
}
