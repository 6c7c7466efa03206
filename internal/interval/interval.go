package interval

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// ErrInvalidRange is returned when a time range is empty or inverted, or a
// requested duration is not positive.
var ErrInvalidRange = errors.New("invalid range")

// Interval is a half-open span of time [Start, End).
// A valid interval has Start strictly before End.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// New returns an interval, or an error wrapping ErrInvalidRange if start is
// not before end.
func New(start, end time.Time) (Interval, error) {
	iv := Interval{Start: start, End: end}
	if !iv.Valid() {
		return Interval{}, fmt.Errorf("%w: start %s is not before end %s",
			ErrInvalidRange, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return iv, nil
}

// Valid reports whether Start is strictly before End.
func (iv Interval) Valid() bool {
	return iv.Start.Before(iv.End)
}

// Duration returns the length of the interval.
func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// Overlaps reports whether the two intervals share at least one instant.
// Touching intervals do not overlap.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Contains reports whether t lies within [Start, End).
func (iv Interval) Contains(t time.Time) bool {
	return !t.Before(iv.Start) && t.Before(iv.End)
}

func (iv Interval) String() string {
	return fmt.Sprintf("[%s, %s)", iv.Start.Format(time.RFC3339), iv.End.Format(time.RFC3339))
}

// Merge sorts intervals by start and fuses any that overlap or touch.
// The result is sorted ascending and pairwise disjoint with a gap between
// neighbours. Invalid intervals are dropped. The input slice is not modified.
func Merge(intervals []Interval) []Interval {
	if len(intervals) == 0 {
		return nil
	}

	sorted := make([]Interval, 0, len(intervals))
	for _, iv := range intervals {
		if iv.Valid() {
			sorted = append(sorted, iv)
		}
	}
	slices.SortStableFunc(sorted, func(a, b Interval) int {
		return a.Start.Compare(b.Start)
	})

	var merged []Interval
	for _, cur := range sorted {
		if n := len(merged); n > 0 && !cur.Start.After(merged[n-1].End) {
			if cur.End.After(merged[n-1].End) {
				merged[n-1].End = cur.End
			}
			continue
		}
		merged = append(merged, cur)
	}
	return merged
}

// TotalDuration returns the sum of the lengths of intervals. Callers that
// want covered time rather than summed time should Merge first.
func TotalDuration(intervals []Interval) time.Duration {
	var total time.Duration
	for _, iv := range intervals {
		if iv.Valid() {
			total += iv.Duration()
		}
	}
	return total
}

// Clip restricts every interval to the window [start, end) and drops the
// ones that fall entirely outside it.
func Clip(intervals []Interval, start, end time.Time) []Interval {
	var out []Interval
	for _, iv := range intervals {
		if iv.Start.Before(start) {
			iv.Start = start
		}
		if iv.End.After(end) {
			iv.End = end
		}
		if iv.Valid() {
			out = append(out, iv)
		}
	}
	return out
}
