package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/teemow/freeslot/internal/credentials"
)

// UserHeader names the user an HTTP request acts for.
const UserHeader = "X-User-ID"

// UserResolver maps HTTP requests to the user whose credentials the tools
// use. Authentication happens in front of the server; the resolver trusts
// the header it is given.
type UserResolver struct {
	header      string
	defaultUser string
}

// NewUserResolver returns a resolver reading UserHeader. Requests without the
// header act for defaultUser.
func NewUserResolver(defaultUser string) *UserResolver {
	return &UserResolver{header: UserHeader, defaultUser: defaultUser}
}

// Resolve returns the user for r and whether it came from the request.
// Invalid IDs fall back to the default user.
func (u *UserResolver) Resolve(r *http.Request) (string, bool) {
	userID := strings.TrimSpace(r.Header.Get(u.header))
	if userID == "" || credentials.ValidateUserID(userID) != nil {
		return u.defaultUser, false
	}
	return userID, true
}

// HTTPContextFunc stores the resolved user in the request context. It has the
// signature expected by the streamable HTTP transport.
func (u *UserResolver) HTTPContextFunc(ctx context.Context, r *http.Request) context.Context {
	userID, ok := u.Resolve(r)
	if !ok {
		return ctx
	}
	return credentials.ContextWithUser(ctx, userID)
}
