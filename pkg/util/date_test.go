package util

import (
	"testing"
	"time"
)

func TestLookbackRange(t *testing.T) {
	now := time.Date(2024, 10, 10, 15, 0, 0, 0, time.UTC)
	from, to := LookbackRange(now, 100)
	if !to.Equal(now) {
		t.Fatalf("to should be now")
	}
	want := time.Date(2024, 5, 13, 0, 0, 0, 0, time.UTC)
	if !from.Equal(want) {
		t.Fatalf("from = %v, want %v", from, want)
	}
}

func TestDayKey(t *testing.T) {
	ts := time.Date(2024, 1, 2, 23, 59, 0, 0, time.FixedZone("X", -3600))
	if got := DayKey(ts); got != "2024-01-03" {
		t.Fatalf("unexpected day key %s", got)
	}
}

func TestCleanMarkdown(t *testing.T) {
	if got := CleanMarkdown("**Buy** *now*"); got != "Buy now" {
		t.Fatalf("unexpected %q", got)
	}
}
