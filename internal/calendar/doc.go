// Package calendar adapts the Google Calendar v3 API to the availability and
// scheduling packages.
//
// Client wraps one calendar.Service for one user and implements both the
// batched free/busy query and event creation. ClientFactory builds clients
// from the credential cache: every call obtains a valid credential through
// Cache.GetValid first, so expired tokens are refreshed before any request
// goes out.
//
// Example usage:
//
//	factory := calendar.NewClientFactory(cache, "default")
//	ctx = credentials.ContextWithUser(ctx, "jane@example.com")
//	busy, err := factory.QueryBusy(ctx, []availability.CalendarRef{"primary"}, start, end)
package calendar
