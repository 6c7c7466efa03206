package scheduling

import (
	"strings"
	"time"

	"github.com/teemow/freeslot/internal/availability"
	"github.com/teemow/freeslot/internal/calendar"
	"github.com/teemow/freeslot/internal/slot"
)

// DefaultOrganizerCalendar is the calendar events are created on when
// neither the request nor the service names one.
const DefaultOrganizerCalendar = "primary"

// Request asks for a meeting of Duration within [Start, End) that is free on
// every calendar.
type Request struct {
	Calendars []availability.CalendarRef
	// Mandatory calendars must be readable; a provider error on one of them
	// fails the request instead of being skipped.
	Mandatory []availability.CalendarRef

	Start        time.Time
	End          time.Time
	Duration     time.Duration
	WorkingHours *slot.WorkingHours

	Event calendar.EventTemplate
	// OrganizerCalendar overrides the service default.
	OrganizerCalendar string
}

// Validate checks the range, duration, working hours and calendar list before
// any provider call. Range errors wrap interval.ErrInvalidRange.
func (r Request) Validate() error {
	if err := r.search().Validate(); err != nil {
		return err
	}
	return r.query().Validate()
}

func (r Request) search() slot.Search {
	return slot.Search{
		Start:        r.Start,
		End:          r.End,
		Duration:     r.Duration,
		WorkingHours: r.WorkingHours,
	}
}

func (r Request) query() availability.Query {
	return availability.Query{
		Calendars: r.Calendars,
		Start:     r.Start,
		End:       r.End,
		Mandatory: r.Mandatory,
	}
}

// attendees returns the template attendees plus every calendar that names a
// person. Aliases such as "primary" are not addresses and are skipped.
func (r Request) attendees() []string {
	refs := make([]string, 0, len(r.Calendars)+len(r.Mandatory))
	for _, list := range [][]availability.CalendarRef{r.Calendars, r.Mandatory} {
		for _, ref := range list {
			if strings.Contains(string(ref), "@") {
				refs = append(refs, string(ref))
			}
		}
	}
	return calendar.MergeAttendees(r.Event.Attendees, refs)
}
