package calendar

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"

	"github.com/teemow/freeslot/internal/availability"
	"github.com/teemow/freeslot/internal/credentials"
)

// CredentialGetter yields a valid credential for a user.
// *credentials.Cache implements it.
type CredentialGetter interface {
	GetValid(ctx context.Context, userID string) (*credentials.Credential, error)
}

// ClientFactory builds per-user Clients from cached credentials.
//
// It also implements availability.BusyTimeProvider and the scheduling event
// creator directly: the user is taken from the context (see
// credentials.ContextWithUser) and falls back to the default user.
type ClientFactory struct {
	creds       CredentialGetter
	defaultUser string
	opts        []option.ClientOption
}

// NewClientFactory creates a factory. opts are passed to every
// calendar.NewService call after the authenticated HTTP client, which makes
// option.WithEndpoint usable for tests.
func NewClientFactory(creds CredentialGetter, defaultUser string, opts ...option.ClientOption) *ClientFactory {
	return &ClientFactory{creds: creds, defaultUser: defaultUser, opts: opts}
}

// ForUser returns a Client authorized as userID. Credential failures wrap
// credentials.ErrCredentialUnavailable.
func (f *ClientFactory) ForUser(ctx context.Context, userID string) (*Client, error) {
	cred, err := f.creds.GetValid(ctx, userID)
	if err != nil {
		return nil, err
	}

	// The credential is already valid; a static source keeps the oauth2
	// transport from refreshing on its own, outside the cache.
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(cred.Token()))

	opts := append([]option.ClientOption{option.WithHTTPClient(httpClient)}, f.opts...)
	client, err := NewClient(ctx, userID, opts...)
	if err != nil {
		return nil, fmt.Errorf("calendar client for %q: %w", userID, err)
	}
	return client, nil
}

// User returns the user the context acts for.
func (f *ClientFactory) User(ctx context.Context) string {
	if userID, ok := credentials.UserFromContext(ctx); ok {
		return userID
	}
	return f.defaultUser
}

// QueryBusy implements availability.BusyTimeProvider for the context's user.
func (f *ClientFactory) QueryBusy(ctx context.Context, calendars []availability.CalendarRef, start, end time.Time) (map[availability.CalendarRef]availability.CalendarBusy, error) {
	client, err := f.ForUser(ctx, f.User(ctx))
	if err != nil {
		return nil, err
	}
	return client.QueryBusy(ctx, calendars, start, end)
}

// CreateEvent creates an event as the context's user.
func (f *ClientFactory) CreateEvent(ctx context.Context, calendarID string, input EventInput) (*Event, error) {
	client, err := f.ForUser(ctx, f.User(ctx))
	if err != nil {
		return nil, err
	}
	return client.CreateEvent(ctx, calendarID, input)
}
