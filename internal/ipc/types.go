package ipc

import "thorn/internal/api"

// Entry mirrors the HTTP API entry DTO for internal IPC callers.
type Entry = api.Entry

// Contact mirrors the HTTP API contact DTO.
type Contact = api.Contact

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents combined daemon status information.
type StatusResponse struct {
	Running         bool           `json:"running"`
	PID             int            `json:"pid"`
	SupervisorState string         `json:"supervisor_state"`
	EntryStats      map[string]int `json:"entry_stats"`
	ScheduleDBPath  string         `json:"schedule_db_path"`
	LockPath        string         `json:"lock_path"`
}

// StopRequest stops the daemon.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// EntryAddRequest creates a scheduled delivery.
type EntryAddRequest struct {
	Entry api.AddEntryRequest `json:"entry"`
}

// EntryAddResponse returns the created entry.
type EntryAddResponse struct {
	Entry Entry `json:"entry"`
}

// EntryCancelRequest cancels a pending entry.
type EntryCancelRequest struct {
	ID string `json:"id"`
}

// EntryCancelResponse indicates cancel result.
type EntryCancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

// EntryResetRequest pushes a dead-man's-switch deadline out.
type EntryResetRequest struct {
	ID   string `json:"id"`
	Word string `json:"word"`
}

// EntryResetResponse returns the re-armed entry.
type EntryResetResponse struct {
	Entry Entry `json:"entry"`
}

// EntryListRequest filters entry listing by status.
type EntryListRequest struct {
	Statuses []string `json:"statuses"`
}

// EntryListResponse contains scheduled entries.
type EntryListResponse struct {
	Entries []Entry `json:"entries"`
}

// EntryDescribeRequest fetches a single entry by id.
type EntryDescribeRequest struct {
	ID string `json:"id"`
}

// EntryDescribeResponse contains a single entry.
type EntryDescribeResponse struct {
	Entry Entry `json:"entry"`
}

// ContactsRequest lists messaging daemon contacts.
type ContactsRequest struct{}

// ContactsResponse contains the contact list.
type ContactsResponse struct {
	Contacts []Contact `json:"contacts"`
}

// ContactLinkRequest fetches this identity's pairing link.
type ContactLinkRequest struct{}

// ContactLinkResponse contains the pairing link.
type ContactLinkResponse struct {
	Link string `json:"link"`
}
