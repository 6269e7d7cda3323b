package main

import (
	"testing"
	"time"
)

func TestParseFireAt(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	got, err := parseFireAt("2026-03-15T09:30:00Z", now)
	if err != nil {
		t.Fatalf("parse RFC 3339: %v", err)
	}
	if !got.Equal(time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC)) {
		t.Fatalf("unexpected time: %v", got)
	}

	got, err = parseFireAt("+2h", now)
	if err != nil {
		t.Fatalf("parse relative: %v", err)
	}
	if !got.Equal(now.Add(2 * time.Hour)) {
		t.Fatalf("unexpected relative time: %v", got)
	}

	got, err = parseFireAt("90m", now)
	if err != nil {
		t.Fatalf("parse bare duration: %v", err)
	}
	if !got.Equal(now.Add(90 * time.Minute)) {
		t.Fatalf("unexpected bare duration time: %v", got)
	}

	for _, bad := range []string{"", "yesterday", "-2h", "+0s"} {
		if _, err := parseFireAt(bad, now); err == nil {
			t.Errorf("parseFireAt(%q) should fail", bad)
		}
	}
}

func TestFormatUntil(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	if got := formatUntil(now.Add(30*time.Minute), now); got != "in 30m0s" {
		t.Fatalf("unexpected short format: %q", got)
	}
	if got := formatUntil(now.Add(72*time.Hour), now); got != "in 3d" {
		t.Fatalf("unexpected day format: %q", got)
	}
	if got := formatUntil(now.Add(-time.Hour), now); got != "1h0m0s overdue" {
		t.Fatalf("unexpected overdue format: %q", got)
	}
	if got := formatUntil(time.Time{}, now); got != "-" {
		t.Fatalf("unexpected zero format: %q", got)
	}
}

func TestLabels(t *testing.T) {
	if got := kindLabel("dead_mans_switch"); got != "Dead Mans Switch" {
		t.Fatalf("unexpected kind label: %q", got)
	}
	if got := kindLabel("one_shot"); got != "One Shot" {
		t.Fatalf("unexpected kind label: %q", got)
	}
	if got := statusLabel("pending"); got != "Pending" {
		t.Fatalf("unexpected status label: %q", got)
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("0123456789abcdef"); got != "01234567" {
		t.Fatalf("unexpected short id: %q", got)
	}
	if got := shortID("abc"); got != "abc" {
		t.Fatalf("short ids pass through, got %q", got)
	}
}
