package api

import (
	"time"

	"thorn/internal/briar"
	"thorn/internal/schedule"
)

// FromEntry converts a stored entry to its wire representation.
func FromEntry(entry *schedule.Entry) Entry {
	if entry == nil {
		return Entry{}
	}
	out := Entry{
		ID:               entry.ID,
		Title:            entry.Title,
		Body:             entry.Body,
		Kind:             string(entry.Kind),
		Status:           string(entry.Status),
		Recipients:       append([]string(nil), entry.Recipients...),
		FireAt:           entry.FireAt,
		IntervalSeconds:  int64(entry.Interval / time.Second),
		DispatchAttempts: entry.DispatchAttempts,
		LastError:        entry.LastError,
		CreatedAt:        entry.CreatedAt,
		UpdatedAt:        entry.UpdatedAt,
		SentAt:           entry.SentAt,
	}
	for _, warning := range entry.WarnBefore {
		out.WarnBeforeSeconds = append(out.WarnBeforeSeconds, int64(warning/time.Second))
	}
	return out
}

// FromEntries converts a slice of stored entries.
func FromEntries(entries []*schedule.Entry) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		if entry == nil {
			continue
		}
		out = append(out, FromEntry(entry))
	}
	return out
}

// FromContact converts a messaging daemon contact.
func FromContact(contact briar.Contact) Contact {
	return Contact{
		ID:        contact.ContactID,
		Name:      contact.Name(),
		Connected: contact.Connected,
	}
}
