package identity

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// The secret file is operator-managed bootstrap state, not holder state: the
// daemon reads it once at startup and feeds the bytes into a Holder. The
// Holder itself never touches the filesystem.

// GenerateSecret returns a new URL-safe base64 secret with 256 bits of
// entropy, suitable for a fresh Briar identity.
func GenerateSecret() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// WriteSecretFile writes the secret to path with owner-only permissions.
// It refuses to overwrite an existing file.
func WriteSecretFile(path, secret string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("secret file path is empty")
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("secret file already exists at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create secret directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(secret+"\n"), 0o600); err != nil {
		return fmt.Errorf("write secret file: %w", err)
	}
	return nil
}

// ReadSecretFile loads the secret from path, trimming trailing whitespace.
// A missing file returns os.ErrNotExist so callers can map it to the
// no-restart exit path.
func ReadSecretFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	secret := strings.TrimSpace(string(data))
	if secret == "" {
		return nil, fmt.Errorf("secret file %s is empty", path)
	}
	return []byte(secret), nil
}
