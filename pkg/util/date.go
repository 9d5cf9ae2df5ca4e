package util

import (
	"strconv"
	"time"
)

// layouts accepted by ParseTime, tried in order. Naive timestamps are UTC.
var layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05-07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime accepts RFC3339, ISO timestamps with a space separator, dates
// and unix seconds or milliseconds.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		if ts > 1e12 {
			return time.UnixMilli(ts).UTC(), true
		}
		return time.Unix(ts, 0).UTC(), true
	}
	return time.Time{}, false
}

// FormatLocal renders t in the server's local zone as ISO 8601 with offset.
func FormatLocal(t time.Time) string { return t.Local().Format(time.RFC3339) }

// FormatUTC renders t in UTC as ISO 8601.
func FormatUTC(t time.Time) string { return t.UTC().Format(time.RFC3339) }
