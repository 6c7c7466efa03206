package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// StringArg returns the trimmed string argument, or "" when it is missing or
// not a string.
func StringArg(args map[string]any, name string) string {
	s, _ := args[name].(string)
	return strings.TrimSpace(s)
}

// RequiredString returns the named argument or an error naming it.
func RequiredString(args map[string]any, name string) (string, error) {
	s := StringArg(args, name)
	if s == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	return s, nil
}

// ListArg accepts a comma-separated string or an array of strings. Blank
// entries are dropped.
func ListArg(args map[string]any, name string) []string {
	var raw []string
	switch v := args[name].(type) {
	case string:
		raw = strings.Split(v, ",")
	case []string:
		raw = v
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				raw = append(raw, s)
			}
		}
	}

	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// TimeArg parses a required RFC3339 argument.
func TimeArg(args map[string]any, name string) (time.Time, error) {
	s, err := RequiredString(args, name)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s format, expected RFC3339: %w", name, err)
	}
	return t, nil
}

// NumberArg returns a numeric argument. JSON numbers arrive as float64;
// numeric strings are accepted too.
func NumberArg(args map[string]any, name string) (float64, bool) {
	switch v := args[name].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}

// BoolArg returns a boolean argument, accepting "true"/"false" strings.
func BoolArg(args map[string]any, name string) bool {
	switch v := args[name].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(v))
		return b
	}
	return false
}
