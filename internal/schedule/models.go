package schedule

import (
	"strings"
	"time"
)

// Kind distinguishes the two scheduled entry variants.
type Kind string

const (
	// KindOneShot fires once at FireAt and is terminal after a confirmed
	// dispatch.
	KindOneShot Kind = "one_shot"
	// KindDeadMansSwitch fires when its owner fails to reset it before
	// FireAt, then re-arms and keeps firing every Interval until cancelled.
	KindDeadMansSwitch Kind = "dead_mans_switch"
)

// Status represents the lifecycle of a scheduled entry.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusCancelled Status = "cancelled"
)

// ParseKind converts a string into a known Kind.
func ParseKind(value string) (Kind, bool) {
	normalized := Kind(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case KindOneShot, KindDeadMansSwitch:
		return normalized, true
	}
	return "", false
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case StatusPending, StatusSent, StatusCancelled:
		return normalized, true
	}
	return "", false
}

// Entry is a scheduled delivery persisted in SQLite.
type Entry struct {
	ID         string
	Title      string
	Body       string
	Kind       Kind
	Status     Status
	Recipients []string // nil broadcasts to all contacts

	FireAt time.Time

	// Dead-man's-switch fields.
	Interval   time.Duration
	ResetWord  string
	WarnBefore []time.Duration // pre-deadline warnings, largest first
	// WarnedThrough counts how many WarnBefore warnings have fired in the
	// current arm cycle; reset on every re-arm.
	WarnedThrough int

	DispatchAttempts int
	LastError        string

	CreatedAt time.Time
	UpdatedAt time.Time
	SentAt    *time.Time
}

// IsTerminal reports whether the entry can never be dispatched again.
func (e *Entry) IsTerminal() bool {
	return e.Status == StatusSent || e.Status == StatusCancelled
}

// DueAt reports whether the entry's deadline has passed at the given time.
func (e *Entry) DueAt(now time.Time) bool {
	return e.Status == StatusPending && !e.FireAt.After(now)
}

// NextWarningAt returns the time the next unsent pre-deadline warning comes
// due, or the zero time when none remain.
func (e *Entry) NextWarningAt() time.Time {
	if e.Kind != KindDeadMansSwitch || e.WarnedThrough >= len(e.WarnBefore) {
		return time.Time{}
	}
	return e.FireAt.Add(-e.WarnBefore[e.WarnedThrough])
}
