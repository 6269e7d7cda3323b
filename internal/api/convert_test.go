package api_test

import (
	"testing"
	"time"

	"thorn/internal/api"
	"thorn/internal/briar"
	"thorn/internal/schedule"
)

func TestFromEntry(t *testing.T) {
	sentAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entry := &schedule.Entry{
		ID:         "abc",
		Title:      "Check in",
		Kind:       schedule.KindDeadMansSwitch,
		Status:     schedule.StatusPending,
		Recipients: []string{"alice"},
		FireAt:     sentAt.Add(time.Hour),
		Interval:   48 * time.Hour,
		ResetWord:  "alive",
		WarnBefore: []time.Duration{24 * time.Hour, 2 * time.Hour},
		SentAt:     &sentAt,
	}

	dto := api.FromEntry(entry)
	if dto.Kind != "dead_mans_switch" || dto.IntervalSeconds != 48*3600 {
		t.Fatalf("unexpected dto: %#v", dto)
	}
	if len(dto.WarnBeforeSeconds) != 2 || dto.WarnBeforeSeconds[0] != 24*3600 {
		t.Fatalf("warnings not converted: %v", dto.WarnBeforeSeconds)
	}
	if dto.SentAt == nil || !dto.SentAt.Equal(sentAt) {
		t.Fatalf("sent_at not carried: %v", dto.SentAt)
	}
}

func TestFromEntryNeverExposesResetWord(t *testing.T) {
	// The DTO has no reset word field at all; this guards the conversion of
	// everything else while the word stays behind.
	entry := &schedule.Entry{ID: "abc", ResetWord: "secret"}
	dto := api.FromEntry(entry)
	if dto.ID != "abc" {
		t.Fatalf("unexpected dto: %#v", dto)
	}
}

func TestFromContactPrefersAlias(t *testing.T) {
	contact := briar.Contact{ContactID: 3, Alias: "Mom", Connected: true}
	contact.Author.Name = "mom-device"

	dto := api.FromContact(contact)
	if dto.Name != "Mom" || dto.ID != 3 || !dto.Connected {
		t.Fatalf("unexpected contact dto: %#v", dto)
	}
}
