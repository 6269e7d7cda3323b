package preflight

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"thorn/internal/testsupport"
)

func TestCheckHeadlessJar(t *testing.T) {
	dir := t.TempDir()

	if result := CheckHeadlessJar(""); result.Passed {
		t.Fatal("expected failure for empty jar path")
	}

	missing := filepath.Join(dir, "missing.jar")
	if result := CheckHeadlessJar(missing); result.Passed {
		t.Fatalf("expected failure for missing jar, got %q", result.Detail)
	}

	if result := CheckHeadlessJar(dir); result.Passed {
		t.Fatal("expected failure when jar path is a directory")
	}

	jar := filepath.Join(dir, "briar-headless.jar")
	if err := os.WriteFile(jar, []byte("jar"), 0o644); err != nil {
		t.Fatalf("write jar: %v", err)
	}
	result := CheckHeadlessJar(jar)
	if !result.Passed {
		t.Fatalf("expected pass, got %q", result.Detail)
	}
	if result.Detail != jar {
		t.Fatalf("expected detail %q, got %q", jar, result.Detail)
	}
}

func TestCheckJava(t *testing.T) {
	if result := CheckJava("definitely-not-a-real-binary-name"); result.Passed {
		t.Fatalf("expected failure for unknown binary, got %q", result.Detail)
	}

	// sh is present on every platform these tests run on.
	result := CheckJava("sh")
	if !result.Passed {
		t.Fatalf("expected pass resolving sh, got %q", result.Detail)
	}
}

func TestCheckDirectoryAccess(t *testing.T) {
	dir := t.TempDir()

	result := CheckDirectoryAccess("Data directory", dir)
	if !result.Passed {
		t.Fatalf("expected pass, got %q", result.Detail)
	}

	missing := filepath.Join(dir, "nope")
	if result := CheckDirectoryAccess("Data directory", missing); result.Passed {
		t.Fatal("expected failure for missing directory")
	}

	file := filepath.Join(dir, "file")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	result = CheckDirectoryAccess("Data directory", file)
	if result.Passed {
		t.Fatal("expected failure for non-directory")
	}
	if !strings.Contains(result.Detail, "not a directory") {
		t.Fatalf("unexpected detail: %q", result.Detail)
	}
}

func TestCheckAPIBind(t *testing.T) {
	cases := []struct {
		bind   string
		passed bool
	}{
		{"127.0.0.1:7482", true},
		{"localhost:7482", true},
		{":7482", true},
		{"", false},
		{"not a bind address", false},
		{"203.0.113.5:7482", false},
	}
	for _, tc := range cases {
		result := CheckAPIBind(tc.bind)
		if result.Passed != tc.passed {
			t.Errorf("CheckAPIBind(%q) passed=%v detail=%q, want passed=%v", tc.bind, result.Passed, result.Detail, tc.passed)
		}
	}
}

func TestRunAllReportsFailures(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Briar.JavaPath = "definitely-not-a-real-binary-name"
	cfg.Briar.JarPath = filepath.Join(cfg.Paths.DataDir, "missing.jar")

	results := RunAll(context.Background(), cfg)
	if len(results) == 0 {
		t.Fatal("expected results")
	}
	failed := Failed(results)
	if len(failed) < 2 {
		t.Fatalf("expected java and jar failures, got %#v", failed)
	}
	for _, result := range failed {
		if result.Detail == "" {
			t.Fatalf("failed check %q missing detail", result.Name)
		}
	}
}
