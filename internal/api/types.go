// Package api defines the transport DTOs shared by the daemon's HTTP API and
// the CLI's IPC surface.
package api

import "time"

// Entry is the wire representation of a scheduled delivery. The reset word
// is deliberately absent: it is supplied by the caller on reset, never read
// back out.
type Entry struct {
	ID                string     `json:"id"`
	Title             string     `json:"title"`
	Body              string     `json:"body"`
	Kind              string     `json:"kind"`
	Status            string     `json:"status"`
	Recipients        []string   `json:"recipients,omitempty"`
	FireAt            time.Time  `json:"fire_at"`
	IntervalSeconds   int64      `json:"interval_seconds,omitempty"`
	WarnBeforeSeconds []int64    `json:"warn_before_seconds,omitempty"`
	DispatchAttempts  int        `json:"dispatch_attempts"`
	LastError         string     `json:"last_error,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	SentAt            *time.Time `json:"sent_at,omitempty"`
}

// AddEntryRequest creates a scheduled delivery. For one-shots FireAt is
// required; for dead-man's-switches IntervalSeconds and ResetWord are.
type AddEntryRequest struct {
	Title             string    `json:"title"`
	Body              string    `json:"body"`
	Kind              string    `json:"kind"`
	Recipients        []string  `json:"recipients,omitempty"`
	FireAt            time.Time `json:"fire_at,omitempty"`
	IntervalSeconds   int64     `json:"interval_seconds,omitempty"`
	ResetWord         string    `json:"reset_word,omitempty"`
	WarnBeforeSeconds []int64   `json:"warn_before_seconds,omitempty"`
}

// ResetRequest pushes a dead-man's-switch deadline out by its interval.
type ResetRequest struct {
	Word string `json:"word"`
}

// Contact is a known recipient on the messaging daemon.
type Contact struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
}

// DaemonStatus aggregates daemon state for status surfaces.
type DaemonStatus struct {
	Running         bool           `json:"running"`
	PID             int            `json:"pid"`
	SupervisorState string         `json:"supervisor_state"`
	EntryStats      map[string]int `json:"entry_stats"`
	ScheduleDBPath  string         `json:"schedule_db_path"`
	LockPath        string         `json:"lock_path"`
	LastError       string         `json:"last_error,omitempty"`
}
