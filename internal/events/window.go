package events

import (
	"fmt"
	"time"

	"familycal/internal/model"
)

var boundLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseWindow validates the literal window bounds of a request.
func ParseWindow(start, end string) (time.Time, time.Time, error) {
	s, err := parseBound("start", start)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	e, err := parseBound("end", end)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return s, e, nil
}

func parseBound(field, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, &model.ValidationError{Field: field, Reason: "is required"}
	}
	for _, layout := range boundLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &model.ValidationError{Field: field, Reason: fmt.Sprintf("%q is not an ISO-8601 timestamp", v)}
}

// UpstreamBound renders a parsed bound as the RFC 3339 timestamp the
// calendar API requires. Bounds given without an offset were read as UTC.
func UpstreamBound(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

// FormatBound renders t the way the dashboard spells window bounds
// (JavaScript's Date.toISOString), so warmed windows share cache keys with
// dashboard requests.
func FormatBound(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

// DayWindow returns the [00:00, 23:59:59.999] window of the day containing
// now in loc.
func DayWindow(now time.Time, loc *time.Location) (string, string) {
	n := now.In(loc)
	start := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1).Add(-time.Millisecond)
	return FormatBound(start), FormatBound(end)
}

// WeekWindow returns a days-long window starting at the Sunday on or before
// now in loc.
func WeekWindow(now time.Time, loc *time.Location, days int) (string, string) {
	n := now.In(loc)
	start := time.Date(n.Year(), n.Month(), n.Day()-int(n.Weekday()), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, days).Add(-time.Millisecond)
	return FormatBound(start), FormatBound(end)
}
