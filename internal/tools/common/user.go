package common

import (
	"context"
	"strings"

	"github.com/teemow/freeslot/internal/credentials"
)

// UserArg is the optional tool argument naming the user to act for.
const UserArg = "user_id"

// ResolveUser returns the user a tool call acts for.
//
// Priority order:
//  1. User set on the context by the HTTP transport
//  2. Explicit "user_id" argument
//  3. defaultUser
func ResolveUser(ctx context.Context, args map[string]any, defaultUser string) string {
	if userID, ok := credentials.UserFromContext(ctx); ok {
		return userID
	}
	if userID, ok := args[UserArg].(string); ok && strings.TrimSpace(userID) != "" {
		return strings.TrimSpace(userID)
	}
	return defaultUser
}
