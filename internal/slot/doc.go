// Package slot finds the first free window of a requested length between
// merged busy intervals, optionally restricted to a daily working-hours band.
//
// FindFirst is first-fit: it returns the earliest acceptable window and does
// not look for a better-sized gap. Busy intervals must already be merged with
// interval.Merge.
package slot
