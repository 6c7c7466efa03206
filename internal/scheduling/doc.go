// Package scheduling finds the first mutually free slot across a set of
// calendars and books it.
//
// ScheduleMutual runs strictly in sequence: validate the request, query busy
// time for all calendars in one batch, merge it, search for the first window
// that fits the duration and working hours, then create the event on the
// organizer's calendar with every queried calendar invited. Finding no slot
// is an outcome, not an error. A failed event creation is never retried
// with a different slot.
package scheduling
