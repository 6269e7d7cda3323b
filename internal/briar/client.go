// Package briar is a minimal client for the briar-headless REST API. It
// covers the handful of endpoints thorn needs: the readiness probe, the
// contact list, and per-contact message sends.
package briar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

var (
	// ErrUnreachable indicates the daemon could not be reached at all, as
	// opposed to reaching it and being refused.
	ErrUnreachable = errors.New("briar daemon unreachable")

	// ErrUnauthorized indicates the auth token is missing or rejected.
	ErrUnauthorized = errors.New("briar auth token missing or rejected")
)

// Contact is a single entry from the daemon's contact list.
type Contact struct {
	ContactID int `json:"contactId"`
	Author    struct {
		Name string `json:"name"`
	} `json:"author"`
	Alias       string `json:"alias"`
	Connected   bool   `json:"connected"`
	UnreadCount int    `json:"unreadCount"`
}

// Name returns the contact's display name, preferring the alias.
func (c Contact) Name() string {
	if strings.TrimSpace(c.Alias) != "" {
		return c.Alias
	}
	return c.Author.Name
}

// Client talks to a briar-headless instance on localhost.
type Client struct {
	baseURL    string
	tokenFile  string
	httpClient *http.Client
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client (used in tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithBaseURL overrides the default localhost base URL (used in tests).
func WithBaseURL(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// NewClient builds a client for the daemon on the given port. The auth token
// is re-read from tokenFile per request because briar-headless writes it
// only once the daemon has started.
func NewClient(port int, tokenFile string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		baseURL:    fmt.Sprintf("http://127.0.0.1:%d", port),
		tokenFile:  tokenFile,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ping reports whether the daemon is ready to accept delivery requests. It
// queries the contact link endpoint, which requires a working session and a
// valid token, matching what a send will need.
func (c *Client) Ping(ctx context.Context) error {
	var ignored struct {
		Link string `json:"link"`
	}
	return c.get(ctx, "/v1/contacts/add/link", &ignored)
}

// ContactLink returns this identity's invitation link.
func (c *Client) ContactLink(ctx context.Context) (string, error) {
	var payload struct {
		Link string `json:"link"`
	}
	if err := c.get(ctx, "/v1/contacts/add/link", &payload); err != nil {
		return "", err
	}
	return payload.Link, nil
}

// Contacts returns the full contact list.
func (c *Client) Contacts(ctx context.Context) ([]Contact, error) {
	var contacts []Contact
	if err := c.get(ctx, "/v1/contacts", &contacts); err != nil {
		return nil, err
	}
	return contacts, nil
}

// SendMessage delivers text to a single contact.
func (c *Client) SendMessage(ctx context.Context, contactID int, text string) error {
	body, err := json.Marshal(map[string]any{
		"contactId": contactID,
		"text":      text,
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, fmt.Sprintf("/v1/messages/%d", contactID), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer drainAndClose(resp.Body)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		return nil
	case http.StatusUnauthorized:
		return ErrUnauthorized
	default:
		return fmt.Errorf("send message to contact %d: unexpected status %s", contactID, resp.Status)
	}
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer drainAndClose(resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return ErrUnauthorized
	default:
		return fmt.Errorf("GET %s: unexpected status %s", path, resp.Status)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	token, err := c.readToken()
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req, nil
}

func (c *Client) readToken() (string, error) {
	if c.tokenFile == "" {
		return "", ErrUnauthorized
	}
	data, err := os.ReadFile(c.tokenFile)
	if err != nil {
		return "", fmt.Errorf("%w: read token file: %v", ErrUnauthorized, err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", ErrUnauthorized
	}
	return token, nil
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 1<<16))
	_ = body.Close()
}
