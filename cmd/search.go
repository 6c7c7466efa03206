package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/freeslot/internal/availability"
	"github.com/teemow/freeslot/internal/scheduling"
	"github.com/teemow/freeslot/internal/slot"
)

const (
	outputText = "text"
	outputJSON = "json"
)

// searchFlags are the flags shared by find-slot and schedule.
type searchFlags struct {
	debug        bool
	user         string
	calendars    string
	mandatory    string
	start        string
	end          string
	duration     time.Duration
	workingHours string
	timeZone     string
	output       string
}

func (f *searchFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.debug, "debug", false, "Enable debug logging")
	cmd.Flags().StringVarP(&f.user, "user", "u", "", "User whose credentials are used (default: DEFAULT_USER)")
	cmd.Flags().StringVarP(&f.calendars, "calendars", "c", "", "Comma-separated calendar IDs or email addresses (required)")
	cmd.Flags().StringVar(&f.mandatory, "mandatory", "", "Comma-separated calendars that must be readable")
	cmd.Flags().StringVar(&f.start, "start", "", "Start of the search range, RFC3339 (default: now)")
	cmd.Flags().StringVar(&f.end, "end", "", "End of the search range, RFC3339 (default: start plus 7 days)")
	cmd.Flags().DurationVarP(&f.duration, "duration", "d", 30*time.Minute, "Meeting duration")
	cmd.Flags().StringVar(&f.workingHours, "working-hours", "", "Daily window for meetings, e.g. 09:00-17:00")
	cmd.Flags().StringVar(&f.timeZone, "time-zone", "", "IANA time zone for working hours and output (default: UTC)")
	cmd.Flags().StringVarP(&f.output, "output", "o", outputText, "Output format: text or json")
	_ = cmd.MarkFlagRequired("calendars")
}

// request converts the flags into a scheduling request. now is used when
// --start is omitted.
func (f *searchFlags) request(now time.Time) (scheduling.Request, error) {
	if f.output != outputText && f.output != outputJSON {
		return scheduling.Request{}, fmt.Errorf("unsupported output format: %s (supported: text, json)", f.output)
	}

	calendars := parseCommaSeparatedList(f.calendars)
	if len(calendars) == 0 {
		return scheduling.Request{}, fmt.Errorf("at least one calendar is required")
	}
	if f.duration <= 0 {
		return scheduling.Request{}, fmt.Errorf("duration must be positive")
	}

	loc := time.UTC
	if f.timeZone != "" {
		var err error
		if loc, err = time.LoadLocation(f.timeZone); err != nil {
			return scheduling.Request{}, fmt.Errorf("invalid time zone %q: %w", f.timeZone, err)
		}
	}

	start := now.In(loc)
	if f.start != "" {
		t, err := time.Parse(time.RFC3339, f.start)
		if err != nil {
			return scheduling.Request{}, fmt.Errorf("invalid --start, expected RFC3339: %w", err)
		}
		start = t.In(loc)
	}
	end := start.Add(7 * 24 * time.Hour)
	if f.end != "" {
		t, err := time.Parse(time.RFC3339, f.end)
		if err != nil {
			return scheduling.Request{}, fmt.Errorf("invalid --end, expected RFC3339: %w", err)
		}
		end = t.In(loc)
	}

	wh, err := parseWorkingHours(f.workingHours)
	if err != nil {
		return scheduling.Request{}, err
	}

	req := scheduling.Request{
		Calendars:    toRefs(calendars),
		Mandatory:    toRefs(parseCommaSeparatedList(f.mandatory)),
		Start:        start,
		End:          end,
		Duration:     f.duration,
		WorkingHours: wh,
	}
	req.Event.TimeZone = f.timeZone
	return req, nil
}

// parseWorkingHours parses "HH:MM-HH:MM". Empty means no restriction.
func parseWorkingHours(s string) (*slot.WorkingHours, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	start, end, ok := strings.Cut(s, "-")
	if !ok {
		return nil, fmt.Errorf("invalid working hours %q, expected HH:MM-HH:MM", s)
	}
	return slot.ParseWorkingHours(strings.TrimSpace(start), strings.TrimSpace(end))
}

// parseCommaSeparatedList splits a comma-separated string, trimming spaces
// and dropping empty entries. An empty input yields nil.
func parseCommaSeparatedList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func toRefs(ids []string) []availability.CalendarRef {
	if len(ids) == 0 {
		return nil
	}
	refs := make([]availability.CalendarRef, len(ids))
	for i, id := range ids {
		refs[i] = availability.CalendarRef(id)
	}
	return refs
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeProviderErrors(w io.Writer, errs map[availability.CalendarRef][]availability.ProviderError) {
	if len(errs) == 0 {
		return
	}
	fmt.Fprintln(w, "Calendars that could not be read (treated as free):")
	for _, ref := range slices.Sorted(maps.Keys(errs)) {
		list := errs[ref]
		reasons := make([]string, len(list))
		for i, e := range list {
			reasons[i] = e.String()
		}
		fmt.Fprintf(w, "  %s: %s\n", ref, strings.Join(reasons, ", "))
	}
}
