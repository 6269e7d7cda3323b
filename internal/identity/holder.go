// Package identity holds the Briar identity secret in memory for the
// lifetime of a single daemon run. The holder never serializes the secret;
// after a restart the caller must re-supply it from its own storage.
package identity

import (
	"errors"
	"sync"
)

var (
	// ErrAlreadySet is returned when SetSecret is called more than once per
	// process run. A second set is treated as an operator error rather than a
	// silent no-op so double-starts surface immediately.
	ErrAlreadySet = errors.New("identity secret already set")

	// ErrNotSet is returned by Secret before SetSecret has been called.
	ErrNotSet = errors.New("identity secret not set")

	// ErrEmptySecret is returned when SetSecret is called with no bytes.
	ErrEmptySecret = errors.New("identity secret is empty")
)

// Holder owns the identity secret for one process run. Exactly one Holder
// exists per running service; it is passed by reference to the components
// that need the secret and read nowhere else.
type Holder struct {
	mu     sync.Mutex
	secret []byte
	set    bool
}

// NewHolder returns an empty Holder.
func NewHolder() *Holder {
	return &Holder{}
}

// SetSecret stores the secret exactly once per process run. Subsequent calls
// fail with ErrAlreadySet, even after Wipe.
func (h *Holder) SetSecret(secret []byte) error {
	if len(secret) == 0 {
		return ErrEmptySecret
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.set {
		return ErrAlreadySet
	}
	h.secret = make([]byte, len(secret))
	copy(h.secret, secret)
	h.set = true
	return nil
}

// Secret returns a copy of the stored secret, or ErrNotSet when SetSecret
// has not been called.
func (h *Holder) Secret() ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.set || h.secret == nil {
		return nil, ErrNotSet
	}
	cp := make([]byte, len(h.secret))
	copy(cp, h.secret)
	return cp, nil
}

// HasSecret reports whether a secret is currently held.
func (h *Holder) HasSecret() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.set && h.secret != nil
}

// Wipe zeroes and drops the secret. The holder stays marked as set so a
// later SetSecret still fails; wiping is for shutdown, not reuse.
func (h *Holder) Wipe() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := range h.secret {
		h.secret[i] = 0
	}
	h.secret = nil
}
