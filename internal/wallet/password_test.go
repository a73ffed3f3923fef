package wallet

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/99designs/keyring"

	"github.com/lenspost/lenspost/internal/secrets"
)

func TestEnvPassword(t *testing.T) {
	t.Setenv(PasswordEnv, "from-env")

	pw, err := Env(PasswordEnv)(context.Background())
	if err != nil || pw != "from-env" {
		t.Errorf("expected from-env, got %q (%v)", pw, err)
	}

	t.Setenv(PasswordEnv, "")
	if _, err := Env(PasswordEnv)(context.Background()); !errors.Is(err, ErrNoPassword) {
		t.Errorf("expected ErrNoPassword, got %v", err)
	}
}

func TestFilePassword(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pw")
	if err := os.WriteFile(path, []byte("from-file\n"), 0600); err != nil {
		t.Fatal(err)
	}

	pw, err := File(path)(context.Background())
	if err != nil || pw != "from-file" {
		t.Errorf("expected from-file, got %q (%v)", pw, err)
	}

	if _, err := File("")(context.Background()); !errors.Is(err, ErrNoPassword) {
		t.Errorf("expected ErrNoPassword for empty path, got %v", err)
	}
}

func TestKeyringPassword(t *testing.T) {
	store := secrets.NewStore(keyring.NewArrayKeyring(nil), "memory")

	if _, err := Keyring(store)(context.Background()); !errors.Is(err, ErrNoPassword) {
		t.Errorf("expected ErrNoPassword, got %v", err)
	}

	_ = store.Set(PasswordKey, "from-keyring", "Wallet password")
	pw, err := Keyring(store)(context.Background())
	if err != nil || pw != "from-keyring" {
		t.Errorf("expected from-keyring, got %q (%v)", pw, err)
	}
}

func TestChainOrder(t *testing.T) {
	failing := func(context.Context) (string, error) { return "", errors.New("broken") }

	pw, err := Chain(Env("LENSPOST_TEST_UNSET_VAR"), failing, Static("third"), Static("fourth"))(context.Background())
	if err != nil {
		t.Fatalf("Chain failed: %v", err)
	}
	if pw != "third" {
		t.Errorf("expected first available source, got %q", pw)
	}
}

func TestChainExhausted(t *testing.T) {
	if _, err := Chain(File(""))(context.Background()); !errors.Is(err, ErrNoPassword) {
		t.Errorf("expected ErrNoPassword, got %v", err)
	}
}
