package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/freeslot/internal/availability"
	"github.com/teemow/freeslot/internal/credentials"
	"github.com/teemow/freeslot/internal/instrumentation"
	"github.com/teemow/freeslot/internal/interval"
	"github.com/teemow/freeslot/internal/logging"
	"github.com/teemow/freeslot/internal/scheduling"
)

func newFindSlotCmd() *cobra.Command {
	var flags searchFlags

	cmd := &cobra.Command{
		Use:   "find-slot",
		Short: "Find the earliest slot free on all calendars",
		Long: `Find the earliest slot of the requested duration that is free on every
listed calendar. Nothing is booked.

Examples:
  freeslot find-slot -c alice@example.com,bob@example.com -d 45m \
    --start 2025-03-03T08:00:00Z --end 2025-03-07T18:00:00Z \
    --working-hours 09:00-17:00 --time-zone Europe/Berlin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := flags.request(time.Now())
			if err != nil {
				return err
			}
			return runFindSlot(cmd.Context(), cmd.OutOrStdout(), flags, req)
		},
	}
	flags.register(cmd)
	return cmd
}

func runFindSlot(ctx context.Context, out io.Writer, flags searchFlags, req scheduling.Request) error {
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

	proposal, err := sc.Scheduler().FindSlot(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to find a slot: %w", err)
	}
	return printProposal(out, flags.output, req, proposal)
}

// proposalOutput is the JSON form of a slot search.
type proposalOutput struct {
	Found          bool                                                        `json:"found"`
	Slot           *interval.Interval                                          `json:"slot,omitempty"`
	Busy           []interval.Interval                                         `json:"busy"`
	ProviderErrors map[availability.CalendarRef][]availability.ProviderError `json:"provider_errors,omitempty"`
}

func printProposal(out io.Writer, format string, req scheduling.Request, p scheduling.Proposal) error {
	found, ok := p.Result.Slot()
	if format == outputJSON {
		res := proposalOutput{Found: ok, Busy: p.Busy, ProviderErrors: p.ProviderErrors}
		if res.Busy == nil {
			res.Busy = []interval.Interval{}
		}
		if ok {
			res.Slot = &found
		}
		return writeJSON(out, res)
	}

	loc := req.Start.Location()
	if ok {
		fmt.Fprintf(out, "First available %s slot: %s to %s\n", req.Duration,
			found.Start.In(loc).Format("Mon, Jan 2 2006 at 15:04"),
			found.End.In(loc).Format("15:04 MST"))
	} else {
		fmt.Fprintf(out, "No available %s slot on all %d calendar(s) between %s and %s\n", req.Duration,
			len(req.Calendars), req.Start.Format(time.RFC3339), req.End.Format(time.RFC3339))
	}
	writeProviderErrors(out, p.ProviderErrors)
	return nil
}
