package availability

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/teemow/freeslot/internal/interval"
)

// Provider error reasons. Google reports "notFound" and "backendError" per
// calendar; "timeout" is assigned when the batched call runs out of time.
const (
	ReasonNotFound     = "notFound"
	ReasonBackendError = "backendError"
	ReasonTimeout      = "timeout"
)

// ErrMandatoryCalendar is wrapped by MandatoryCalendarError.
var ErrMandatoryCalendar = errors.New("mandatory calendar unavailable")

// CalendarRef identifies a calendar, usually an email address or "primary".
type CalendarRef string

// ProviderError is a per-calendar failure reported by the busy-time provider.
type ProviderError struct {
	Domain  string `json:"domain,omitempty"`
	Reason  string `json:"reason"`
	Message string `json:"message,omitempty"`
}

func (e ProviderError) String() string {
	if e.Message != "" {
		return e.Reason + ": " + e.Message
	}
	return e.Reason
}

// CalendarBusy is the provider result for one calendar. Busy is non-empty
// only for calendars the provider could read.
type CalendarBusy struct {
	Busy   []interval.Interval `json:"busy"`
	Errors []ProviderError     `json:"errors,omitempty"`
}

// Failed reports whether the provider returned errors for the calendar.
func (c CalendarBusy) Failed() bool {
	return len(c.Errors) > 0
}

// BusyTimeProvider returns busy intervals for several calendars in one call.
// A returned error means the whole call failed; per-calendar problems are
// reported in CalendarBusy.Errors.
type BusyTimeProvider interface {
	QueryBusy(ctx context.Context, calendars []CalendarRef, start, end time.Time) (map[CalendarRef]CalendarBusy, error)
}

// Query asks for the busy time of Calendars within [Start, End).
// Mandatory calendars must be readable for the query to succeed; they are
// queried even if missing from Calendars.
type Query struct {
	Calendars []CalendarRef
	Start     time.Time
	End       time.Time
	Mandatory []CalendarRef
}

// Validate checks the range and calendar list. Errors wrap
// interval.ErrInvalidRange.
func (q Query) Validate() error {
	if !q.Start.Before(q.End) {
		return fmt.Errorf("%w: range start %s is not before end %s",
			interval.ErrInvalidRange, q.Start.Format(time.RFC3339), q.End.Format(time.RFC3339))
	}
	if len(q.Calendars) == 0 && len(q.Mandatory) == 0 {
		return fmt.Errorf("%w: at least one calendar is required", interval.ErrInvalidRange)
	}
	for _, ref := range q.all() {
		if strings.TrimSpace(string(ref)) == "" {
			return fmt.Errorf("%w: empty calendar id", interval.ErrInvalidRange)
		}
	}
	return nil
}

// all returns Calendars followed by any Mandatory calendars not already
// listed, without duplicates and in request order.
func (q Query) all() []CalendarRef {
	seen := make(map[CalendarRef]bool, len(q.Calendars)+len(q.Mandatory))
	out := make([]CalendarRef, 0, len(q.Calendars)+len(q.Mandatory))
	for _, list := range [][]CalendarRef{q.Calendars, q.Mandatory} {
		for _, ref := range list {
			if seen[ref] {
				continue
			}
			seen[ref] = true
			out = append(out, ref)
		}
	}
	return out
}

// Report maps every queried calendar to its busy intervals and errors.
type Report struct {
	Start     time.Time                    `json:"start"`
	End       time.Time                    `json:"end"`
	Calendars map[CalendarRef]CalendarBusy `json:"calendars"`
}

// Failed returns the calendars that reported errors, sorted.
func (r Report) Failed() []CalendarRef {
	var out []CalendarRef
	for ref, cb := range r.Calendars {
		if cb.Failed() {
			out = append(out, ref)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// HasErrors reports whether any calendar failed.
func (r Report) HasErrors() bool {
	for _, cb := range r.Calendars {
		if cb.Failed() {
			return true
		}
	}
	return false
}

// Errors returns the provider errors of every failed calendar.
func (r Report) Errors() map[CalendarRef][]ProviderError {
	out := make(map[CalendarRef][]ProviderError)
	for ref, cb := range r.Calendars {
		if cb.Failed() {
			out[ref] = cb.Errors
		}
	}
	return out
}

// MutualBusy flattens the busy intervals of every calendar and merges them.
// Failed calendars contribute whatever busy time they reported, usually none.
func (r Report) MutualBusy() []interval.Interval {
	var all []interval.Interval
	for _, cb := range r.Calendars {
		all = append(all, cb.Busy...)
	}
	return interval.Merge(all)
}

// CalendarFailure names a calendar and the errors it reported.
type CalendarFailure struct {
	Calendar CalendarRef
	Errors   []ProviderError
}

// MandatoryCalendarError is returned when a calendar that must be readable
// reported errors.
type MandatoryCalendarError struct {
	Failures []CalendarFailure
}

func (e *MandatoryCalendarError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		reasons := make([]string, 0, len(f.Errors))
		for _, pe := range f.Errors {
			reasons = append(reasons, pe.Reason)
		}
		parts = append(parts, fmt.Sprintf("%s (%s)", f.Calendar, strings.Join(reasons, ", ")))
	}
	return fmt.Sprintf("%v: %s", ErrMandatoryCalendar, strings.Join(parts, "; "))
}

func (e *MandatoryCalendarError) Unwrap() error {
	return ErrMandatoryCalendar
}
