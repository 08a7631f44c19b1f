// Package timeutil holds the timestamp conventions used across storage and
// queries: second-precision UTC instants rendered as "2006-01-02T15:04:05Z"
// and UTC dates rendered as "2006-01-02".
package timeutil

import (
	"fmt"
	"strings"
	"time"
)

const isoSeconds = "2006-01-02T15:04:05"

// parseFormats covers ISO-8601 with and without a zone plus the RFC 822/1123
// shapes feeds emit. Naive values are interpreted as UTC.
var parseFormats = []string{
	time.RFC3339,
	isoSeconds,
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	time.RFC822Z,
	time.RFC822,
}

// IsoNow returns the current UTC instant at second precision, e.g.
// "2026-08-24T10:15:00Z".
func IsoNow() string {
	return FormatISO(time.Now())
}

// FormatISO renders t in UTC at second precision with a trailing Z.
func FormatISO(t time.Time) string {
	return t.UTC().Format(isoSeconds) + "Z"
}

// IsoDateToday returns today's UTC date as "2006-01-02".
func IsoDateToday() string {
	return time.Now().UTC().Format("2006-01-02")
}

// ParseDateTime parses value with the accepted formats, treating zoneless
// values as UTC.
func ParseDateTime(value string) (time.Time, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, format := range parseFormats {
		t, err := time.Parse(format, v)
		if err == nil {
			if t.Location() == time.UTC {
				return t, nil
			}
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}

// ParseDate parses value as a date, accepting full timestamps and truncating
// them to their UTC day.
func ParseDate(value string) (time.Time, error) {
	t, err := ParseDateTime(value)
	if err != nil {
		return time.Time{}, err
	}
	return t.Truncate(24 * time.Hour), nil
}

// FormatDate renders t's UTC day as "2006-01-02".
func FormatDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
