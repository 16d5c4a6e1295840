// Package util holds small helpers shared by the use cases.
package util

import (
	"strings"
	"time"
)

// LookbackRange returns the calendar window that should contain at least
// lookbackDays trading days ending at now: 1.5 calendar days per trading day.
func LookbackRange(now time.Time, lookbackDays int) (from, to time.Time) {
	span := time.Duration(lookbackDays) * 36 * time.Hour
	return now.Add(-span).Truncate(24 * time.Hour), now
}

// DayKey formats t as a UTC calendar day, used to bucket cache keys.
func DayKey(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

// CleanMarkdown removes emphasis asterisks from generated markdown.
func CleanMarkdown(s string) string {
	return strings.ReplaceAll(s, "*", "")
}
