package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/freeslot/internal/availability"
	"github.com/teemow/freeslot/internal/calendar"
	"github.com/teemow/freeslot/internal/credentials"
	"github.com/teemow/freeslot/internal/instrumentation"
	"github.com/teemow/freeslot/internal/interval"
	"github.com/teemow/freeslot/internal/logging"
	"github.com/teemow/freeslot/internal/scheduling"
)

// scheduleFlags adds the event fields to the search flags.
type scheduleFlags struct {
	searchFlags
	summary           string
	description       string
	location          string
	attendees         string
	organizerCalendar string
	sendUpdates       bool
	addConference     bool
}

func newScheduleCmd() *cobra.Command {
	var flags scheduleFlags

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Book a meeting at the earliest mutually free slot",
		Long: `Find the earliest slot that is free on every listed calendar and create the
event there. Calendars given as email addresses are invited.

Examples:
  freeslot schedule -c alice@example.com,bob@example.com -d 30m \
    --summary "Design review" --working-hours 10:00-16:00 --send-updates`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := flags.request(time.Now())
			if err != nil {
				return err
			}
			return runSchedule(cmd.Context(), cmd.OutOrStdout(), flags, req)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&flags.summary, "summary", "s", "", "Event title (required)")
	cmd.Flags().StringVar(&flags.description, "description", "", "Event description")
	cmd.Flags().StringVar(&flags.location, "location", "", "Event location")
	cmd.Flags().StringVar(&flags.attendees, "attendees", "", "Comma-separated extra attendee emails")
	cmd.Flags().StringVar(&flags.organizerCalendar, "organizer-calendar", "", "Calendar to create the event on (default: ORGANIZER_CALENDAR)")
	cmd.Flags().BoolVar(&flags.sendUpdates, "send-updates", false, "Email invitations to attendees")
	cmd.Flags().BoolVar(&flags.addConference, "add-conference", false, "Attach a Google Meet link")
	_ = cmd.MarkFlagRequired("summary")
	return cmd
}

// request extends the search request with the event template.
func (f *scheduleFlags) request(now time.Time) (scheduling.Request, error) {
	if strings.TrimSpace(f.summary) == "" {
		return scheduling.Request{}, fmt.Errorf("summary is required")
	}
	req, err := f.searchFlags.request(now)
	if err != nil {
		return scheduling.Request{}, err
	}
	req.Event.Summary = f.summary
	req.Event.Description = f.description
	req.Event.Location = f.location
	req.Event.Attendees = parseCommaSeparatedList(f.attendees)
	req.Event.SendUpdates = f.sendUpdates
	req.Event.AddConference = f.addConference
	req.OrganizerCalendar = f.organizerCalendar
	return req, nil
}

func runSchedule(ctx context.Context, out io.Writer, flags scheduleFlags, req scheduling.Request) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := newLogger(os.Stderr, flags.debug)
	sc, err := newServerContext(ctx, logger, nil, instrumentation.AuditLoggingConfig{})
	if err != nil {
		return err
	}
	defer func() {
		if err := sc.Shutdown(); err != nil {
			logger.Warn("error during shutdown", logging.Err(err))
		}
	}()

	if flags.user != "" {
		ctx = credentials.ContextWithUser(ctx, flags.user)
	}

	outcome, err := sc.Scheduler().ScheduleMutual(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to schedule meeting: %w", err)
	}
	return printOutcome(out, flags.output, req, outcome)
}

// outcomeOutput is the JSON form of a scheduling outcome.
type outcomeOutput struct {
	Scheduled      bool                                                        `json:"scheduled"`
	Slot           *interval.Interval                                          `json:"slot,omitempty"`
	Event          *calendar.Event                                             `json:"event,omitempty"`
	ProviderErrors map[availability.CalendarRef][]availability.ProviderError `json:"provider_errors,omitempty"`
}

func printOutcome(out io.Writer, format string, req scheduling.Request, o scheduling.Outcome) error {
	event, found, ok := o.Event()
	if format == outputJSON {
		res := outcomeOutput{Scheduled: ok, ProviderErrors: o.ProviderErrors}
		if ok {
			res.Slot = &found
			res.Event = event
		}
		return writeJSON(out, res)
	}

	if !ok {
		fmt.Fprintf(out, "No slot: no %s window is free on all %d calendar(s)\n", req.Duration, len(req.Calendars))
		writeProviderErrors(out, o.ProviderErrors)
		return nil
	}

	loc := req.Start.Location()
	fmt.Fprintf(out, "Meeting scheduled: %s\n", event.Summary)
	fmt.Fprintf(out, "  Event ID: %s\n", event.ID)
	fmt.Fprintf(out, "  When: %s to %s\n",
		found.Start.In(loc).Format("Mon, Jan 2 2006 at 15:04"),
		found.End.In(loc).Format("15:04 MST"))
	if event.HTMLLink != "" {
		fmt.Fprintf(out, "  Link: %s\n", event.HTMLLink)
	}
	if event.MeetLink != "" {
		fmt.Fprintf(out, "  Meet: %s\n", event.MeetLink)
	}
	writeProviderErrors(out, o.ProviderErrors)
	return nil
}
