// Package delivery defines the narrow send surface the scheduler dispatches
// through, and its Briar-backed implementation.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrDaemonUnavailable indicates the messaging daemon could not be reached
// at all. Partial per-recipient failure is reported through Outcome counts,
// never through this error.
var ErrDaemonUnavailable = errors.New("messaging daemon unavailable")

// Outcome describes how a delivery request fared per recipient.
type Outcome struct {
	Requested int
	Delivered int
	Failed    int
}

// Confirmed reports whether at least one recipient received the payload.
// The scheduler treats a confirmed outcome as terminal for one-shot entries:
// retrying a partially delivered send would re-deliver to the recipients
// that already succeeded.
func (o Outcome) Confirmed() bool {
	return o.Delivered > 0
}

func (o Outcome) String() string {
	return fmt.Sprintf("%d/%d delivered", o.Delivered, o.Requested)
}

// Sender delivers a titled payload to a recipient set. A nil or empty
// recipients slice broadcasts to every known contact. Implementations return
// ErrDaemonUnavailable only for total unreachability.
type Sender interface {
	Deliver(ctx context.Context, title, body string, recipients []string) (Outcome, error)
}

// FormatMessage renders the wire text for a delivery. The trailing Sent
// timestamp mirrors what recipients of the original relay expect.
func FormatMessage(title, body string, sentAt time.Time) string {
	return fmt.Sprintf("%s\n\n%s\n\nSent: %s", title, body, sentAt.UTC().Format(time.RFC3339))
}
