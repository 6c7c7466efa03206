package slot

import (
	"fmt"
	"time"

	"github.com/teemow/freeslot/internal/interval"
)

// Result is the outcome of a slot search: either a found window or nothing.
type Result struct {
	slot  interval.Interval
	found bool
}

// Found wraps a window as a successful result.
func Found(s interval.Interval) Result {
	return Result{slot: s, found: true}
}

// NotFound is the result of a search that found no acceptable window.
func NotFound() Result {
	return Result{}
}

// Slot returns the window and whether one was found.
func (r Result) Slot() (interval.Interval, bool) {
	return r.slot, r.found
}

// IsFound reports whether the search produced a window.
func (r Result) IsFound() bool {
	return r.found
}

func (r Result) String() string {
	if !r.found {
		return "not found"
	}
	return r.slot.String()
}

// Search describes a slot search over [Start, End).
type Search struct {
	Start        time.Time
	End          time.Time
	Duration     time.Duration
	WorkingHours *WorkingHours
}

// Validate rejects empty ranges, non-positive durations and malformed
// working hours. Range errors wrap interval.ErrInvalidRange.
func (s Search) Validate() error {
	if !s.Start.Before(s.End) {
		return fmt.Errorf("%w: range start %s is not before end %s",
			interval.ErrInvalidRange, s.Start.Format(time.RFC3339), s.End.Format(time.RFC3339))
	}
	if s.Duration <= 0 {
		return fmt.Errorf("%w: duration %s must be positive", interval.ErrInvalidRange, s.Duration)
	}
	if s.WorkingHours != nil {
		if err := s.WorkingHours.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Find runs FindFirst with the search parameters.
func (s Search) Find(mergedBusy []interval.Interval) Result {
	return FindFirst(s.Start, s.End, s.Duration, mergedBusy, s.WorkingHours)
}

// FindFirst walks the gaps between mergedBusy in order and returns the first
// window of the given duration inside [rangeStart, rangeEnd) that satisfies
// wh. A nil wh accepts any window. mergedBusy must be sorted and disjoint.
func FindFirst(rangeStart, rangeEnd time.Time, duration time.Duration, mergedBusy []interval.Interval, wh *WorkingHours) Result {
	if duration <= 0 || !rangeStart.Before(rangeEnd) {
		return NotFound()
	}

	cursor := rangeStart
	for _, busy := range mergedBusy {
		if !cursor.Before(rangeEnd) {
			return NotFound()
		}
		gapEnd := busy.Start
		if gapEnd.After(rangeEnd) {
			gapEnd = rangeEnd
		}
		if start, ok := fit(cursor, gapEnd, duration, wh); ok {
			return Found(interval.Interval{Start: start, End: start.Add(duration)})
		}
		if busy.End.After(cursor) {
			cursor = busy.End
		}
	}

	if start, ok := fit(cursor, rangeEnd, duration, wh); ok {
		return Found(interval.Interval{Start: start, End: start.Add(duration)})
	}
	return NotFound()
}

// fit returns the earliest start in the gap [gapStart, gapEnd) whose window
// of length d stays inside the gap and the working-hours band of one day.
func fit(gapStart, gapEnd time.Time, d time.Duration, wh *WorkingHours) (time.Time, bool) {
	if gapEnd.Sub(gapStart) < d {
		return time.Time{}, false
	}
	if wh == nil {
		return gapStart, true
	}

	for day := gapStart; day.Before(gapEnd); day = nextDay(day) {
		start := wh.Start.On(day)
		if start.Before(gapStart) {
			start = gapStart
		}
		end := start.Add(d)
		if end.After(gapEnd) {
			return time.Time{}, false
		}
		if wh.Allows(start, end) {
			return start, true
		}
	}
	return time.Time{}, false
}

func nextDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location())
}
