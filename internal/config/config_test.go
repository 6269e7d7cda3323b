package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"thorn/internal/config"
)

func TestDefaultValidates(t *testing.T) {
	cfg := config.Default()
	// Default paths contain ~ which normalize expands during Load; mimic that
	// here by loading with no config file present.
	loaded, _, exists, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if exists {
		t.Fatal("expected no config file")
	}
	if loaded.Briar.Port != cfg.Briar.Port {
		t.Fatalf("expected default port %d, got %d", cfg.Briar.Port, loaded.Briar.Port)
	}
	if loaded.Scheduler.PollInterval <= 0 {
		t.Fatal("expected positive poll interval")
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
data_dir = "` + dir + `/data"
log_dir = "` + dir + `/logs"
secret_file = "` + dir + `/secret"
api_bind = "127.0.0.1:9999"

[briar]
jar_path = "` + dir + `/briar-headless.jar"
port = 7100

[scheduler]
poll_interval = 2
max_dispatch_attempts = 5
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected config at %s, got %s (exists=%v)", path, resolved, exists)
	}
	if cfg.Briar.Port != 7100 {
		t.Fatalf("expected port 7100, got %d", cfg.Briar.Port)
	}
	if cfg.Scheduler.PollInterval != 2 || cfg.Scheduler.MaxDispatchAttempts != 5 {
		t.Fatalf("unexpected scheduler config: %+v", cfg.Scheduler)
	}
	if cfg.Paths.APIBind != "127.0.0.1:9999" {
		t.Fatalf("unexpected api bind: %s", cfg.Paths.APIBind)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"bad bind", func(c *config.Config) { c.Paths.APIBind = "not-a-bind" }, "api_bind"},
		{"bad port", func(c *config.Config) { c.Briar.Port = 700000 }, "briar.port"},
		{"bad format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"bad level", func(c *config.Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"missing jar", func(c *config.Config) { c.Briar.JarPath = "" }, "briar.jar_path"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Logging.Format = "console"
			cfg.Logging.Level = "info"
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(dir, "data")
	cfg.Paths.LogDir = filepath.Join(dir, "logs")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, p := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir} {
		info, err := os.Stat(p)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory at %s: %v", p, err)
		}
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.WriteSample(path, false); err != nil {
		t.Fatalf("WriteSample failed: %v", err)
	}
	if err := config.WriteSample(path, false); err == nil {
		t.Fatal("expected overwrite refusal")
	}
	if err := config.WriteSample(path, true); err != nil {
		t.Fatalf("forced WriteSample failed: %v", err)
	}
}
