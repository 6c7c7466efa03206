package slot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidWorkingHours is returned when a working-hours band cannot be parsed
// or does not start before it ends.
var ErrInvalidWorkingHours = errors.New("invalid working hours")

// Clock is a time of day with minute precision.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses an "HH:MM" time of day. "24:00" is accepted as the end
// of the day.
func ParseClock(s string) (Clock, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(hh) == 0 || len(hh) > 2 || len(mm) != 2 {
		return Clock{}, fmt.Errorf("%w: %q is not HH:MM", ErrInvalidWorkingHours, s)
	}
	if hh == "24" && mm == "00" {
		return Clock{Hour: 24}, nil
	}
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return Clock{}, fmt.Errorf("%w: hour in %q out of range", ErrInvalidWorkingHours, s)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return Clock{}, fmt.Errorf("%w: minute in %q out of range", ErrInvalidWorkingHours, s)
	}
	return Clock{Hour: hour, Minute: minute}, nil
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

func (c Clock) minutes() int {
	return c.Hour*60 + c.Minute
}

// On returns the instant at this time of day on the calendar day of t, in t's
// location. 24:00 is midnight at the end of that day.
func (c Clock) On(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, c.Hour, c.Minute, 0, 0, t.Location())
}

// WorkingHours is a daily band [Start, End) applied identically to every day
// of a search.
type WorkingHours struct {
	Start Clock
	End   Clock
}

// ParseWorkingHours parses a band from two "HH:MM" strings.
func ParseWorkingHours(start, end string) (*WorkingHours, error) {
	s, err := ParseClock(start)
	if err != nil {
		return nil, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return nil, err
	}
	wh := &WorkingHours{Start: s, End: e}
	if err := wh.Validate(); err != nil {
		return nil, err
	}
	return wh, nil
}

// Validate checks that the band starts before it ends.
func (wh WorkingHours) Validate() error {
	if wh.Start.minutes() >= wh.End.minutes() {
		return fmt.Errorf("%w: start %s is not before end %s", ErrInvalidWorkingHours, wh.Start, wh.End)
	}
	return nil
}

// Allows reports whether [start, end) lies inside the band of start's
// calendar day. The band never extends past midnight, so windows spanning
// two days are rejected.
func (wh WorkingHours) Allows(start, end time.Time) bool {
	return !start.Before(wh.Start.On(start)) && !end.After(wh.End.On(start))
}

func (wh WorkingHours) String() string {
	return wh.Start.String() + "-" + wh.End.String()
}
