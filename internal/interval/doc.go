// Package interval models busy time as half-open time intervals and merges
// overlapping or touching intervals into a sorted, disjoint list.
//
// Merge is pure: it never mutates its input and applying it twice yields the
// same result as applying it once.
//
//	merged := interval.Merge(busy)
//	total := interval.TotalDuration(merged)
package interval
