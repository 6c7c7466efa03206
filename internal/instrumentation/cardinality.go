package instrumentation

import "strings"

// Cardinality helpers for metric labels. User IDs and calendar lists are
// unbounded, so they are reduced to a small set of values before use.

// ExtractUserDomain extracts the domain part from an email-like user ID.
//
//	ExtractUserDomain("jane@example.com")  // "example.com"
//	ExtractUserDomain("default")           // "unknown"
//	ExtractUserDomain("")                  // "unknown"
func ExtractUserDomain(userID string) string {
	if userID == "" {
		return "unknown"
	}

	parts := strings.Split(userID, "@")
	if len(parts) == 2 && parts[1] != "" {
		return parts[1]
	}

	return "unknown"
}

// CalendarCountBucket maps a calendar count to one of "0", "1", "2-5",
// "6-20" or "21+".
func CalendarCountBucket(n int) string {
	switch {
	case n <= 0:
		return "0"
	case n == 1:
		return "1"
	case n <= 5:
		return "2-5"
	case n <= 20:
		return "6-20"
	default:
		return "21+"
	}
}
