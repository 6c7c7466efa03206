package scheduling

import (
	"errors"
	"fmt"
	"time"

	"github.com/teemow/freeslot/internal/availability"
	"github.com/teemow/freeslot/internal/calendar"
	"github.com/teemow/freeslot/internal/interval"
	"github.com/teemow/freeslot/internal/slot"
)

// ErrCreationFailed is wrapped by CreationError.
var ErrCreationFailed = errors.New("event creation failed")

var (
	errNoCreator = errors.New("no event creator configured")
	errNoEvent   = errors.New("provider returned no event")
)

// CreationError reports that a free slot was found but the event could not
// be created on it.
type CreationError struct {
	Calendar string
	Slot     interval.Interval
	Err      error
}

func (e *CreationError) Error() string {
	return fmt.Sprintf("%v on calendar %s for slot %s: %v", ErrCreationFailed, e.Calendar, e.Slot, e.Err)
}

func (e *CreationError) Unwrap() []error {
	return []error{ErrCreationFailed, e.Err}
}

// Proposal is the result of a slot search without booking.
type Proposal struct {
	Result slot.Result
	// Busy is the merged busy time across all calendars.
	Busy []interval.Interval
	// ProviderErrors lists calendars that could not be read. Their busy time
	// is unknown and was treated as free.
	ProviderErrors map[availability.CalendarRef][]availability.ProviderError
}

// Outcome is the tagged result of ScheduleMutual: either a created event on
// a slot, or no slot at all.
type Outcome struct {
	scheduled bool
	event     *calendar.Event
	slot      interval.Interval

	// ProviderErrors lists calendars that could not be read.
	ProviderErrors map[availability.CalendarRef][]availability.ProviderError
}

// Scheduled builds the outcome for a created event.
func Scheduled(event *calendar.Event, s interval.Interval, providerErrors map[availability.CalendarRef][]availability.ProviderError) Outcome {
	return Outcome{scheduled: true, event: event, slot: s, ProviderErrors: providerErrors}
}

// NoSlot builds the outcome for a search that found no free window.
func NoSlot(providerErrors map[availability.CalendarRef][]availability.ProviderError) Outcome {
	return Outcome{ProviderErrors: providerErrors}
}

// IsScheduled reports whether an event was created.
func (o Outcome) IsScheduled() bool {
	return o.scheduled
}

// Event returns the created event and slot. ok is false for NoSlot.
func (o Outcome) Event() (event *calendar.Event, s interval.Interval, ok bool) {
	return o.event, o.slot, o.scheduled
}

func (o Outcome) String() string {
	if !o.scheduled {
		return "no slot"
	}
	return fmt.Sprintf("scheduled %s at %s", o.event.ID, o.slot.Start.Format(time.RFC3339))
}
