package normalize

import (
	"strings"
	"time"
)

// epochMillisThreshold separates epoch seconds from epoch milliseconds.
const epochMillisThreshold = 1e12

// NormalizeTimestamp converts an upstream timestamp value to ISO-8601 UTC
// text. Numeric values are treated as epoch seconds or milliseconds by
// magnitude; strings are parsed as ISO-8601 with or without a Z suffix.
// Anything unparseable falls back to the given fallback, never to an error.
func NormalizeTimestamp(value any, fallback string) string {
	switch v := value.(type) {
	case nil:
		return fallback
	case float64:
		return epochToISO(v, fallback)
	case int:
		return epochToISO(float64(v), fallback)
	case int64:
		return epochToISO(float64(v), fallback)
	case string:
		text := strings.TrimSpace(v)
		if text == "" {
			return fallback
		}
		if t, ok := ParseISO(text); ok {
			return t.UTC().Format(time.RFC3339)
		}
		return fallback
	default:
		return fallback
	}
}

func epochToISO(v float64, fallback string) string {
	seconds := v
	if v > epochMillisThreshold {
		seconds = v / 1000
	}
	if seconds < 0 || seconds > float64(time.Unix(0, 0).AddDate(1000, 0, 0).Unix()) {
		return fallback
	}
	return time.Unix(int64(seconds), 0).UTC().Format(time.RFC3339)
}

// ParseISO parses ISO-8601 text, accepting a trailing Z as UTC and
// timestamps without an explicit offset.
func ParseISO(text string) (time.Time, bool) {
	text = strings.TrimSpace(text)
	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, text); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
