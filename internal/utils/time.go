package utils

import (
	"time"
)

// FormatTimeISO matches the browser's Date.toISOString: UTC, millisecond
// precision, zero padded, so stored timestamps sort lexicographically.
func FormatTimeISO(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

func ParseTimeISO(timeStr string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, timeStr)
}

// DefaultDateRange returns [now-days, now] in ISO form.
func DefaultDateRange(now time.Time, days int) (string, string) {
	return FormatTimeISO(now.AddDate(0, 0, -days)), FormatTimeISO(now)
}

// DayKey is the UTC calendar day used to bucket realtime counters.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
