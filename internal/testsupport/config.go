// Package testsupport provides shared helpers for package tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"thorn/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.SecretFile = filepath.Join(base, "secret")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Briar.JarPath = filepath.Join(base, "briar-headless.jar")
	cfg.Briar.AuthTokenFile = filepath.Join(base, "auth_token")

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithMaxDispatchAttempts caps scheduler retries for the test config.
func WithMaxDispatchAttempts(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Scheduler.MaxDispatchAttempts = n
	}
}
