package credentials

import "context"

type userIDKey struct{}

// ContextWithUser returns a context carrying the ID of the user that
// provider calls should act for.
func ContextWithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserFromContext returns the user ID set by ContextWithUser.
func UserFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey{}).(string)
	return userID, ok && userID != ""
}
