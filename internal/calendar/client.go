package calendar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/teemow/freeslot/internal/availability"
	"github.com/teemow/freeslot/internal/instrumentation"
	"github.com/teemow/freeslot/internal/interval"
	"github.com/teemow/freeslot/internal/logging"
)

// reasonInvalidResponse marks a busy period the API returned in a form that
// could not be parsed.
const reasonInvalidResponse = "invalidResponse"

// Client wraps the Google Calendar service for one user.
type Client struct {
	svc    *calendar.Service
	userID string
}

// NewClient creates a Calendar client. Callers pass the authenticated HTTP
// client through option.WithHTTPClient or option.WithTokenSource.
func NewClient(ctx context.Context, userID string, opts ...option.ClientOption) (*Client, error) {
	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}
	return &Client{svc: svc, userID: userID}, nil
}

// UserID returns the user this client acts for.
func (c *Client) UserID() string {
	return c.userID
}

// QueryBusy runs one free/busy query for all calendars. Calendars the API
// reports errors for carry them in CalendarBusy.Errors; calendars absent
// from the response are left out of the map.
func (c *Client) QueryBusy(ctx context.Context, calendars []availability.CalendarRef, start, end time.Time) (map[availability.CalendarRef]availability.CalendarBusy, error) {
	ctx, span := instrumentation.StartProviderSpan(ctx, "freebusy.query",
		instrumentation.NewSpanAttributeBuilder().
			WithUser(logging.AnonymizeUser(c.userID)).
			WithCalendarCount(len(calendars)).
			Build()...)
	defer span.End()

	items := make([]*calendar.FreeBusyRequestItem, len(calendars))
	for i, ref := range calendars {
		items[i] = &calendar.FreeBusyRequestItem{Id: string(ref)}
	}

	query := &calendar.FreeBusyRequest{
		TimeMin: start.Format(time.RFC3339),
		TimeMax: end.Format(time.RFC3339),
		Items:   items,
	}

	result, err := c.svc.Freebusy.Query(query).Context(ctx).Do()
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return nil, fmt.Errorf("failed to query freebusy for %d calendars: %w", len(calendars), err)
	}

	out := make(map[availability.CalendarRef]availability.CalendarBusy, len(result.Calendars))
	for id, cal := range result.Calendars {
		out[availability.CalendarRef(id)] = toCalendarBusy(cal)
	}
	instrumentation.SetSpanSuccess(span)
	return out, nil
}

func toCalendarBusy(cal calendar.FreeBusyCalendar) availability.CalendarBusy {
	var cb availability.CalendarBusy
	for _, e := range cal.Errors {
		cb.Errors = append(cb.Errors, availability.ProviderError{Domain: e.Domain, Reason: e.Reason})
	}
	for _, busy := range cal.Busy {
		period, err := parsePeriod(busy)
		if err != nil {
			cb.Errors = append(cb.Errors, availability.ProviderError{
				Reason:  reasonInvalidResponse,
				Message: err.Error(),
			})
			continue
		}
		cb.Busy = append(cb.Busy, period)
	}
	return cb
}

// CreateEvent inserts an event on calendarID.
func (c *Client) CreateEvent(ctx context.Context, calendarID string, input EventInput) (*Event, error) {
	ctx, span := instrumentation.StartProviderSpan(ctx, "events.insert",
		instrumentation.NewSpanAttributeBuilder().
			WithUser(logging.AnonymizeUser(c.userID)).
			WithCalendarCount(len(input.Attendees)).
			Build()...)
	defer span.End()

	tz := input.TimeZone
	if tz == "" {
		tz = "UTC"
	}

	event := &calendar.Event{
		Summary:     input.Summary,
		Description: input.Description,
		Location:    input.Location,
		Start: &calendar.EventDateTime{
			DateTime: input.Start.Format(time.RFC3339),
			TimeZone: tz,
		},
		End: &calendar.EventDateTime{
			DateTime: input.End.Format(time.RFC3339),
			TimeZone: tz,
		},
	}

	for _, email := range MergeAttendees(input.Attendees) {
		event.Attendees = append(event.Attendees, &calendar.EventAttendee{Email: email})
	}

	call := c.svc.Events.Insert(calendarID, event).Context(ctx)
	if input.SendUpdates {
		call = call.SendUpdates("all")
	} else {
		call = call.SendUpdates("none")
	}
	if input.AddConference {
		call = call.ConferenceDataVersion(1)
		event.ConferenceData = &calendar.ConferenceData{
			CreateRequest: &calendar.CreateConferenceRequest{
				RequestId:             uuid.NewString(),
				ConferenceSolutionKey: &calendar.ConferenceSolutionKey{Type: "hangoutsMeet"},
			},
		}
	}

	created, err := call.Do()
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return nil, fmt.Errorf("failed to create event on calendar %s: %w", calendarID, err)
	}

	out := toEvent(created)
	span.SetAttributes(instrumentation.NewSpanAttributeBuilder().WithEventID(out.ID).Build()...)
	instrumentation.SetSpanSuccess(span)
	return &out, nil
}

func parsePeriod(p *calendar.TimePeriod) (interval.Interval, error) {
	if p == nil {
		return interval.Interval{}, fmt.Errorf("empty busy period")
	}
	start, err := time.Parse(time.RFC3339, p.Start)
	if err != nil {
		return interval.Interval{}, fmt.Errorf("parse busy start %q: %w", p.Start, err)
	}
	end, err := time.Parse(time.RFC3339, p.End)
	if err != nil {
		return interval.Interval{}, fmt.Errorf("parse busy end %q: %w", p.End, err)
	}
	// Degenerate periods are dropped later by interval.Merge.
	return interval.Interval{Start: start, End: end}, nil
}

// MergeAttendees joins address lists, dropping blanks and repeats. Addresses
// compare case-insensitively; the first spelling wins.
func MergeAttendees(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range lists {
		for _, e := range list {
			e = strings.TrimSpace(e)
			key := strings.ToLower(e)
			if e == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, e)
		}
	}
	return out
}
