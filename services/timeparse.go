package services

import (
	"fmt"
	"strings"
	"time"
)

// Layouts without a zone are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// outputLayout is RFC 3339 with milliseconds, trailing zeros trimmed.
const outputLayout = "2006-01-02T15:04:05.999Z07:00"

// ParseTimestamp reads an ISO-8601 timestamp and normalizes it to UTC.
// Precision is cut to milliseconds, the finest every supported database keeps.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Truncate(time.Millisecond), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

// ParseDate reads a calendar date, accepting a full timestamp as well.
func ParseDate(s string) (time.Time, error) {
	t, err := ParseTimestamp(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(outputLayout)
}

func parseRange(start, end string) (time.Time, time.Time, *ServerError) {
	s, err := ParseTimestamp(start)
	if err != nil {
		return time.Time{}, time.Time{}, badRequest("invalid start time: " + err.Error())
	}
	e, err := ParseTimestamp(end)
	if err != nil {
		return time.Time{}, time.Time{}, badRequest("invalid end time: " + err.Error())
	}
	if !s.Before(e) {
		return time.Time{}, time.Time{}, ErrInvalidTimeRange
	}
	return s, e, nil
}
