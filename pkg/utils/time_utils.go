package utils

import (
	"strings"
	"time"
)

// lastModifiedLayouts are the timestamp forms accepted for object groups
var lastModifiedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses an RFC3339 or date-only timestamp
func ParseTimestamp(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range lastModifiedLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// LatestTimestamp returns the most recent parsable timestamp. Unparsable
// values are ignored.
func LatestTimestamp(values map[string]string) (time.Time, bool) {
	var latest time.Time
	found := false
	for _, value := range values {
		t, ok := ParseTimestamp(value)
		if !ok {
			continue
		}
		if !found || t.After(latest) {
			latest = t
			found = true
		}
	}
	return latest, found
}

// DaysBetween counts UTC calendar days from since to now
func DaysBetween(since, now time.Time) int {
	s := since.UTC()
	n := now.UTC()
	sinceDate := time.Date(s.Year(), s.Month(), s.Day(), 0, 0, 0, 0, time.UTC)
	nowDate := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
	return int(nowDate.Sub(sinceDate).Hours() / 24)
}

// UptimeHours returns the hours between launch and now, never negative
func UptimeHours(launch, now time.Time) float64 {
	hours := now.Sub(launch).Hours()
	if hours < 0 {
		return 0
	}
	return hours
}
