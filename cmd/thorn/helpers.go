package main

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var labelCaser = cases.Title(language.English)

func kindLabel(kind string) string {
	return labelCaser.String(strings.ReplaceAll(kind, "_", " "))
}

func statusLabel(status string) string {
	return labelCaser.String(status)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// parseFireAt accepts an absolute RFC 3339 timestamp, a local "2006-01-02
// 15:04" timestamp, or a relative duration like "+2h" or "90m".
func parseFireAt(value string, now time.Time) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("fire time is required")
	}

	if t, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02 15:04", trimmed, time.Local); err == nil {
		return t, nil
	}

	durText := strings.TrimPrefix(trimmed, "+")
	if dur, err := time.ParseDuration(durText); err == nil {
		if dur <= 0 {
			return time.Time{}, fmt.Errorf("relative fire time must be positive, got %q", value)
		}
		return now.Add(dur), nil
	}

	return time.Time{}, fmt.Errorf("unrecognized fire time %q (want RFC 3339, \"2006-01-02 15:04\", or a duration like +2h)", value)
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

// formatUntil renders how far away t is, rounded to a readable unit.
func formatUntil(t, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	delta := t.Sub(now)
	overdue := delta < 0
	if overdue {
		delta = -delta
	}
	var text string
	switch {
	case delta >= 48*time.Hour:
		text = fmt.Sprintf("%dd", int(delta.Hours()/24))
	case delta >= time.Hour:
		text = delta.Round(time.Minute).String()
	default:
		text = delta.Round(time.Second).String()
	}
	if overdue {
		return text + " overdue"
	}
	return "in " + text
}
