// Package availability collects busy intervals for a set of calendars in one
// batched provider call and reduces them to a single mutual busy set.
//
// A per-calendar failure (an unknown calendar, a provider error or a timeout
// of the batched call) is reported next to that calendar in the Report and
// does not abort the query. Calendars listed as mandatory turn such failures
// into a *MandatoryCalendarError.
//
// Busy time on any calendar is a conflict for everyone: MutualBusy merges the
// busy intervals of all calendars into one sorted, disjoint list suitable for
// slot.FindFirst.
package availability
