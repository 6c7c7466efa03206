package calendar_tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/freeslot/internal/availability"
	"github.com/teemow/freeslot/internal/server"
	"github.com/teemow/freeslot/internal/tools/common"
)

func registerAvailabilityTools(s *mcpserver.MCPServer, sc *server.ServerContext) {
	freeBusyOpts := []mcp.ToolOption{
		mcp.WithDescription("Report busy periods for one or more calendars or attendees in a time range. Calendars that cannot be read are listed with their errors instead of failing the call."),
		userOption(),
		mcp.WithString("calendars",
			mcp.Required(),
			mcp.Description("Comma-separated list of calendar IDs or email addresses to check"),
		),
	}
	freeBusyOpts = append(freeBusyOpts, rangeOptions()...)
	s.AddTool(mcp.NewTool(ToolQueryFreeBusy, freeBusyOpts...),
		common.InstrumentedToolHandler(ToolQueryFreeBusy, sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleQueryFreeBusy(ctx, request, sc)
		}))

	findOpts := append([]mcp.ToolOption{
		mcp.WithDescription("Find the earliest time slot of the given duration that is free on every calendar, without creating an event"),
	}, schedulingOptions()...)
	s.AddTool(mcp.NewTool(ToolFindAvailableTime, findOpts...),
		common.InstrumentedToolHandler(ToolFindAvailableTime, sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleFindAvailableTime(ctx, request, sc)
		}))
}

func handleQueryFreeBusy(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	calendars := common.ListArg(args, "calendars")
	if len(calendars) == 0 {
		return mcp.NewToolResultError("calendars is required"), nil
	}
	w, err := parseWindow(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	common.Annotate(ctx, len(calendars), "")

	report, err := sc.Aggregator().Availability(ctx, availability.Query{
		Calendars: calendarRefs(calendars),
		Start:     w.start,
		End:       w.end,
	})
	if err != nil {
		return errorResult("query free/busy", err), nil
	}

	return mcp.NewToolResultText(formatReport(report)), nil
}

func formatReport(report availability.Report) string {
	loc := report.Start.Location()

	var b strings.Builder
	fmt.Fprintf(&b, "Free/Busy information for %d calendar(s):\n\n", len(report.Calendars))
	for _, ref := range sortedRefs(report.Calendars) {
		cb := report.Calendars[ref]
		fmt.Fprintf(&b, "Calendar: %s\n", ref)

		if cb.Failed() {
			reasons := make([]string, len(cb.Errors))
			for i, e := range cb.Errors {
				reasons[i] = e.String()
			}
			fmt.Fprintf(&b, "  Errors: %s\n", strings.Join(reasons, ", "))
		} else if len(cb.Busy) == 0 {
			b.WriteString("  Status: FREE for entire range\n")
		}

		if len(cb.Busy) > 0 {
			fmt.Fprintf(&b, "  Busy periods: %d\n", len(cb.Busy))
			for i, busy := range cb.Busy {
				fmt.Fprintf(&b, "  %d. %s to %s\n", i+1,
					busy.Start.In(loc).Format("2006-01-02 15:04"),
					busy.End.In(loc).Format("2006-01-02 15:04 MST"))
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

func handleFindAvailableTime(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	req, err := parseRequest(request.GetArguments())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	common.Annotate(ctx, len(req.Calendars), "")

	proposal, err := sc.Scheduler().FindSlot(ctx, req)
	if err != nil {
		return errorResult("find available time", err), nil
	}

	var b strings.Builder
	if found, ok := proposal.Result.Slot(); ok {
		loc := req.Start.Location()
		fmt.Fprintf(&b, "First available %d minute slot for %d calendar(s):\n  %s to %s (%s)\n",
			int(req.Duration.Minutes()), len(req.Calendars),
			found.Start.In(loc).Format("Mon, Jan 2 2006 at 15:04"),
			found.End.In(loc).Format("15:04 MST"),
			formatInterval(found, loc))
	} else {
		b.WriteString("No available time slot found for the specified criteria\n")
	}
	formatProviderErrors(&b, proposal.ProviderErrors)

	return mcp.NewToolResultText(b.String()), nil
}
