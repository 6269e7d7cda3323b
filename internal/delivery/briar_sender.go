package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"thorn/internal/briar"
	"thorn/internal/logging"
)

// BriarSender delivers through the briar-headless REST API.
type BriarSender struct {
	client *briar.Client
	logger *slog.Logger
	clock  func() time.Time
}

// NewBriarSender wraps a briar client as a Sender.
func NewBriarSender(client *briar.Client, logger *slog.Logger) *BriarSender {
	return &BriarSender{
		client: client,
		logger: logging.NewComponentLogger(logger, "delivery"),
		clock:  time.Now,
	}
}

// Deliver resolves the recipient set against the contact list and sends the
// formatted payload to each resolved contact. Recipients that cannot be
// resolved count as failed.
func (s *BriarSender) Deliver(ctx context.Context, title, body string, recipients []string) (Outcome, error) {
	contacts, err := s.client.Contacts(ctx)
	if err != nil {
		if errors.Is(err, briar.ErrUnreachable) {
			return Outcome{}, fmt.Errorf("%w: %v", ErrDaemonUnavailable, err)
		}
		return Outcome{}, fmt.Errorf("list contacts: %w", err)
	}

	targets, unresolved := resolveTargets(contacts, recipients)
	outcome := Outcome{Requested: len(targets) + unresolved, Failed: unresolved}
	if outcome.Requested == 0 {
		return Outcome{}, errors.New("no contacts to deliver to")
	}

	text := FormatMessage(title, body, s.clock())
	unreachable := 0
	for _, contact := range targets {
		if err := s.client.SendMessage(ctx, contact.ContactID, text); err != nil {
			outcome.Failed++
			if errors.Is(err, briar.ErrUnreachable) {
				unreachable++
			}
			s.logger.Warn("send failed",
				logging.Int("contact_id", contact.ContactID),
				logging.Error(err),
			)
			continue
		}
		outcome.Delivered++
	}

	// Every attempted send died on the wire: report unavailability so the
	// scheduler retries rather than recording a permanent failure.
	if outcome.Delivered == 0 && unreachable == len(targets) && len(targets) > 0 {
		return Outcome{}, fmt.Errorf("%w: all %d sends unreachable", ErrDaemonUnavailable, len(targets))
	}

	s.logger.Debug("delivery finished",
		logging.String("title", title),
		logging.Int("requested", outcome.Requested),
		logging.Int("delivered", outcome.Delivered),
		logging.Int("failed", outcome.Failed),
	)
	return outcome, nil
}

func resolveTargets(contacts []briar.Contact, recipients []string) ([]briar.Contact, int) {
	if len(recipients) == 0 {
		return contacts, 0
	}

	byName := make(map[string]briar.Contact, len(contacts))
	for _, contact := range contacts {
		byName[contact.Name()] = contact
	}

	targets := make([]briar.Contact, 0, len(recipients))
	unresolved := 0
	for _, name := range recipients {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		contact, ok := byName[name]
		if !ok {
			unresolved++
			continue
		}
		targets = append(targets, contact)
	}
	return targets, unresolved
}
