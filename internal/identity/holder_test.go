package identity_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"thorn/internal/identity"
)

func TestSecretBeforeSetFails(t *testing.T) {
	holder := identity.NewHolder()
	if _, err := holder.Secret(); !errors.Is(err, identity.ErrNotSet) {
		t.Fatalf("expected ErrNotSet, got %v", err)
	}
	if holder.HasSecret() {
		t.Fatal("expected no secret held")
	}
}

func TestSetSecretIsOncePerRun(t *testing.T) {
	holder := identity.NewHolder()
	if err := holder.SetSecret([]byte("hunter2")); err != nil {
		t.Fatalf("SetSecret failed: %v", err)
	}
	if err := holder.SetSecret([]byte("other")); !errors.Is(err, identity.ErrAlreadySet) {
		t.Fatalf("expected ErrAlreadySet, got %v", err)
	}

	got, err := holder.Secret()
	if err != nil {
		t.Fatalf("Secret failed: %v", err)
	}
	if !bytes.Equal(got, []byte("hunter2")) {
		t.Fatalf("unexpected secret %q", got)
	}
}

func TestSetSecretRejectsEmpty(t *testing.T) {
	holder := identity.NewHolder()
	if err := holder.SetSecret(nil); !errors.Is(err, identity.ErrEmptySecret) {
		t.Fatalf("expected ErrEmptySecret, got %v", err)
	}
}

func TestSecretReturnsCopy(t *testing.T) {
	holder := identity.NewHolder()
	if err := holder.SetSecret([]byte("hunter2")); err != nil {
		t.Fatalf("SetSecret failed: %v", err)
	}
	first, _ := holder.Secret()
	first[0] = 'X'
	second, _ := holder.Secret()
	if !bytes.Equal(second, []byte("hunter2")) {
		t.Fatal("mutating a returned secret must not affect the holder")
	}
}

func TestWipeDropsSecretButStaysSet(t *testing.T) {
	holder := identity.NewHolder()
	if err := holder.SetSecret([]byte("hunter2")); err != nil {
		t.Fatalf("SetSecret failed: %v", err)
	}
	holder.Wipe()
	if _, err := holder.Secret(); !errors.Is(err, identity.ErrNotSet) {
		t.Fatalf("expected ErrNotSet after wipe, got %v", err)
	}
	if err := holder.SetSecret([]byte("again")); !errors.Is(err, identity.ErrAlreadySet) {
		t.Fatalf("expected ErrAlreadySet after wipe, got %v", err)
	}
}

func TestConcurrentSetSecretExactlyOneWins(t *testing.T) {
	holder := identity.NewHolder()
	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = holder.SetSecret([]byte{byte('a' + i)})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, identity.ErrAlreadySet) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one successful set, got %d", succeeded)
	}
}

func TestSecretFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret")

	secret, err := identity.GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret failed: %v", err)
	}
	if len(secret) < 40 {
		t.Fatalf("secret too short: %d chars", len(secret))
	}

	if err := identity.WriteSecretFile(path, secret); err != nil {
		t.Fatalf("WriteSecretFile failed: %v", err)
	}
	if err := identity.WriteSecretFile(path, secret); err == nil {
		t.Fatal("expected overwrite refusal")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat secret file: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected 0600 permissions, got %v", info.Mode().Perm())
	}

	loaded, err := identity.ReadSecretFile(path)
	if err != nil {
		t.Fatalf("ReadSecretFile failed: %v", err)
	}
	if string(loaded) != secret {
		t.Fatalf("round trip mismatch: %q != %q", loaded, secret)
	}
}

func TestReadSecretFileMissing(t *testing.T) {
	_, err := identity.ReadSecretFile(filepath.Join(t.TempDir(), "absent"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected os.ErrNotExist, got %v", err)
	}
}
