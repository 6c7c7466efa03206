package credentials

import (
	"errors"
	"fmt"
)

var (
	// ErrCredentialUnavailable is wrapped by every error GetValid returns.
	ErrCredentialUnavailable = errors.New("credential unavailable")

	// ErrNotFound is returned by a Source that has nothing stored for a user.
	ErrNotFound = errors.New("credential not found")

	// ErrNoRefreshToken is returned when an expired credential cannot be refreshed.
	ErrNoRefreshToken = errors.New("no refresh token available")

	// ErrInvalidUserID is returned for user IDs that cannot be used as keys.
	ErrInvalidUserID = errors.New("invalid user id")
)

// UnavailableError reports that no valid credential could be produced for a
// user. It matches ErrCredentialUnavailable and its cause with errors.Is.
type UnavailableError struct {
	UserID string
	// Op is the step that failed last: "fetch" or "refresh".
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("unable to obtain valid Google API credentials for user %q (%s): %v", e.UserID, e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() []error {
	return []error{ErrCredentialUnavailable, e.Err}
}
