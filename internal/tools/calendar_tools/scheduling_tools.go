package calendar_tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/freeslot/internal/instrumentation"
	"github.com/teemow/freeslot/internal/scheduling"
	"github.com/teemow/freeslot/internal/server"
	"github.com/teemow/freeslot/internal/tools/common"
)

func registerSchedulingTools(s *mcpserver.MCPServer, sc *server.ServerContext) {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription("Find the earliest slot that is free on every calendar and create the meeting there. Returns 'no slot' when nothing fits."),
		mcp.WithString("summary",
			mcp.Required(),
			mcp.Description("Event title"),
		),
		mcp.WithString("description",
			mcp.Description("Event description"),
		),
		mcp.WithString("location",
			mcp.Description("Event location"),
		),
		mcp.WithString("attendees",
			mcp.Description("Comma-separated extra attendee emails. Calendars given as email addresses are invited automatically."),
		),
		mcp.WithString("organizerCalendar",
			mcp.Description("Calendar to create the event on (default: the server's organizer calendar)"),
		),
		mcp.WithBoolean("sendUpdates",
			mcp.Description("Email invitations to attendees (default: false)"),
		),
		mcp.WithBoolean("addConference",
			mcp.Description("Attach a Google Meet link (default: false)"),
		),
	}, schedulingOptions()...)

	s.AddTool(mcp.NewTool(ToolScheduleMutual, opts...),
		common.InstrumentedToolHandler(ToolScheduleMutual, sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleScheduleMutual(ctx, request, sc)
		}))
}

func handleScheduleMutual(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	summary := common.StringArg(args, "summary")
	if summary == "" {
		return mcp.NewToolResultError("summary is required"), nil
	}
	req, err := parseRequest(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	req.Event.Summary = summary
	req.Event.Description = common.StringArg(args, "description")
	req.Event.Location = common.StringArg(args, "location")
	req.Event.Attendees = common.ListArg(args, "attendees")
	req.Event.SendUpdates = common.BoolArg(args, "sendUpdates")
	req.Event.AddConference = common.BoolArg(args, "addConference")
	req.OrganizerCalendar = common.StringArg(args, "organizerCalendar")

	outcome, err := sc.Scheduler().ScheduleMutual(ctx, req)
	if err != nil {
		common.Annotate(ctx, len(req.Calendars), outcomeForError(err))
		return errorResult("schedule meeting", err), nil
	}

	return mcp.NewToolResultText(formatOutcome(ctx, req, outcome)), nil
}

func outcomeForError(err error) string {
	if errors.Is(err, scheduling.ErrCreationFailed) {
		return instrumentation.OutcomeCreationFailed
	}
	return instrumentation.OutcomeRejected
}

func formatOutcome(ctx context.Context, req scheduling.Request, outcome scheduling.Outcome) string {
	var b strings.Builder

	event, found, ok := outcome.Event()
	if !ok {
		common.Annotate(ctx, len(req.Calendars), instrumentation.OutcomeNoSlot)
		fmt.Fprintf(&b, "No slot: no %d minute window is free on all %d calendar(s) in the requested range\n",
			int(req.Duration.Minutes()), len(req.Calendars))
		formatProviderErrors(&b, outcome.ProviderErrors)
		return b.String()
	}
	common.Annotate(ctx, len(req.Calendars), instrumentation.OutcomeScheduled)

	loc := req.Start.Location()
	fmt.Fprintf(&b, "Meeting scheduled: %s\n", event.Summary)
	fmt.Fprintf(&b, "  Event ID: %s\n", event.ID)
	fmt.Fprintf(&b, "  When: %s to %s\n",
		found.Start.In(loc).Format("Mon, Jan 2 2006 at 15:04"),
		found.End.In(loc).Format("15:04 MST"))
	if len(event.Attendees) > 0 {
		emails := make([]string, len(event.Attendees))
		for i, a := range event.Attendees {
			emails[i] = a.Email
		}
		fmt.Fprintf(&b, "  Attendees: %s\n", strings.Join(emails, ", "))
	}
	if event.MeetLink != "" {
		fmt.Fprintf(&b, "  Meet: %s\n", event.MeetLink)
	}
	if event.HTMLLink != "" {
		fmt.Fprintf(&b, "  Link: %s\n", event.HTMLLink)
	}
	formatProviderErrors(&b, outcome.ProviderErrors)
	return b.String()
}
