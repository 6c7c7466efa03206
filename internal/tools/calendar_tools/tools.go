package calendar_tools

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/freeslot/internal/availability"
	"github.com/teemow/freeslot/internal/credentials"
	"github.com/teemow/freeslot/internal/interval"
	"github.com/teemow/freeslot/internal/scheduling"
	"github.com/teemow/freeslot/internal/server"
	"github.com/teemow/freeslot/internal/slot"
	"github.com/teemow/freeslot/internal/tools/common"
)

// Tool names.
const (
	ToolQueryFreeBusy     = "calendar_query_freebusy"
	ToolFindAvailableTime = "calendar_find_available_time"
	ToolScheduleMutual    = "calendar_schedule_mutual"
	ToolTokenStatus       = "credentials_token_status"
)

// RegisterCalendarTools registers the availability, scheduling and
// credential tools with the MCP server.
func RegisterCalendarTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	if sc == nil {
		return fmt.Errorf("server context is required")
	}
	registerAvailabilityTools(s, sc)
	registerSchedulingTools(s, sc)
	registerCredentialTools(s, sc)
	return nil
}

func userOption() mcp.ToolOption {
	return mcp.WithString(common.UserArg,
		mcp.Description("User whose Google credentials are used (default: the server's default user). Ignored when the HTTP transport names a user."),
	)
}

func rangeOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("timeMin",
			mcp.Required(),
			mcp.Description("Start of the range (RFC3339, e.g. '2025-01-01T09:00:00Z')"),
		),
		mcp.WithString("timeMax",
			mcp.Required(),
			mcp.Description("End of the range, exclusive (RFC3339, e.g. '2025-01-01T17:00:00Z')"),
		),
		mcp.WithString("timeZone",
			mcp.Description("IANA time zone for working hours and the created event, e.g. 'Europe/Berlin' (default: UTC)"),
		),
	}
}

// window is the parsed search range of a tool call.
type window struct {
	start, end time.Time
	zone       string
}

func parseWindow(args map[string]any) (window, error) {
	start, err := common.TimeArg(args, "timeMin")
	if err != nil {
		return window{}, err
	}
	end, err := common.TimeArg(args, "timeMax")
	if err != nil {
		return window{}, err
	}

	w := window{start: start.UTC(), end: end.UTC(), zone: common.StringArg(args, "timeZone")}
	if w.zone != "" {
		loc, err := time.LoadLocation(w.zone)
		if err != nil {
			return window{}, fmt.Errorf("invalid timeZone %q: %w", w.zone, err)
		}
		w.start, w.end = start.In(loc), end.In(loc)
	}
	return w, nil
}

func calendarRefs(ids []string) []availability.CalendarRef {
	refs := make([]availability.CalendarRef, len(ids))
	for i, id := range ids {
		refs[i] = availability.CalendarRef(id)
	}
	return refs
}

// parseRequest builds a scheduling request from the arguments shared by
// calendar_find_available_time and calendar_schedule_mutual.
func parseRequest(args map[string]any) (scheduling.Request, error) {
	calendars := common.ListArg(args, "calendars")
	if len(calendars) == 0 {
		return scheduling.Request{}, fmt.Errorf("calendars is required")
	}

	minutes, ok := common.NumberArg(args, "durationMinutes")
	if !ok || minutes <= 0 {
		return scheduling.Request{}, fmt.Errorf("durationMinutes is required and must be positive")
	}

	w, err := parseWindow(args)
	if err != nil {
		return scheduling.Request{}, err
	}

	req := scheduling.Request{
		Calendars: calendarRefs(calendars),
		Mandatory: calendarRefs(common.ListArg(args, "mandatory")),
		Start:     w.start,
		End:       w.end,
		Duration:  time.Duration(minutes * float64(time.Minute)),
	}
	req.Event.TimeZone = w.zone

	whStart := common.StringArg(args, "workingHoursStart")
	whEnd := common.StringArg(args, "workingHoursEnd")
	switch {
	case whStart != "" && whEnd != "":
		wh, err := slot.ParseWorkingHours(whStart, whEnd)
		if err != nil {
			return scheduling.Request{}, err
		}
		req.WorkingHours = wh
	case whStart != "" || whEnd != "":
		return scheduling.Request{}, fmt.Errorf("workingHoursStart and workingHoursEnd must be given together")
	}
	return req, nil
}

func schedulingOptions() []mcp.ToolOption {
	opts := []mcp.ToolOption{
		userOption(),
		mcp.WithString("calendars",
			mcp.Required(),
			mcp.Description("Comma-separated calendar IDs or attendee email addresses that must all be free"),
		),
		mcp.WithString("mandatory",
			mcp.Description("Comma-separated calendars that must be readable; an error on one of them fails the request"),
		),
		mcp.WithNumber("durationMinutes",
			mcp.Required(),
			mcp.Description("Meeting duration in minutes"),
		),
		mcp.WithString("workingHoursStart",
			mcp.Description("Daily start of allowed meeting time, HH:MM in timeZone (e.g. '09:00')"),
		),
		mcp.WithString("workingHoursEnd",
			mcp.Description("Daily end of allowed meeting time, HH:MM in timeZone (e.g. '17:00')"),
		),
	}
	return append(opts, rangeOptions()...)
}

// errorResult maps domain errors to user-facing tool errors.
func errorResult(action string, err error) *mcp.CallToolResult {
	var (
		mandatoryErr *availability.MandatoryCalendarError
		creationErr  *scheduling.CreationError
	)
	switch {
	case errors.Is(err, interval.ErrInvalidRange), errors.Is(err, slot.ErrInvalidWorkingHours):
		return mcp.NewToolResultError(fmt.Sprintf("Invalid request: %v", err))
	case errors.As(err, &mandatoryErr):
		return mcp.NewToolResultError(fmt.Sprintf("Failed to %s: %v", action, mandatoryErr))
	case errors.Is(err, credentials.ErrCredentialUnavailable):
		return mcp.NewToolResultError(fmt.Sprintf("Failed to %s: no usable Google credential: %v", action, err))
	case errors.As(err, &creationErr):
		return mcp.NewToolResultError(fmt.Sprintf("Found a free slot at %s but could not create the event: %v",
			creationErr.Slot.Start.Format(time.RFC3339), creationErr.Err))
	default:
		return mcp.NewToolResultError(fmt.Sprintf("Failed to %s: %v", action, err))
	}
}

func formatProviderErrors(b *strings.Builder, errs map[availability.CalendarRef][]availability.ProviderError) {
	if len(errs) == 0 {
		return
	}
	b.WriteString("\nCalendars that could not be read (treated as free):\n")
	for _, ref := range sortedRefs(errs) {
		reasons := make([]string, len(errs[ref]))
		for i, e := range errs[ref] {
			reasons[i] = e.String()
		}
		fmt.Fprintf(b, "  %s: %s\n", ref, strings.Join(reasons, ", "))
	}
}

func sortedRefs[V any](m map[availability.CalendarRef]V) []availability.CalendarRef {
	return slices.Sorted(maps.Keys(m))
}

func formatInterval(iv interval.Interval, loc *time.Location) string {
	return fmt.Sprintf("%s to %s", iv.Start.In(loc).Format(time.RFC3339), iv.End.In(loc).Format(time.RFC3339))
}
