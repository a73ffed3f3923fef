package wallet

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/lenspost/lenspost/internal/logging"
	"github.com/lenspost/lenspost/internal/secrets"
)

// Keyring entries for the wallet password.
const (
	PasswordKey       = "wallet-password"
	KernelPasswordKey = "lenspost-wallet"
	PasswordEnv       = "LENSPOST_WALLET_PASSWORD"
)

// ErrNoPassword is returned when no password source yields a password.
var ErrNoPassword = errors.New("no wallet password available")

// PasswordFunc resolves the keystore password.
type PasswordFunc func(ctx context.Context) (string, error)

// Static always returns password.
func Static(password string) PasswordFunc {
	return func(context.Context) (string, error) {
		return password, nil
	}
}

// Env reads the password from an environment variable.
func Env(name string) PasswordFunc {
	return func(context.Context) (string, error) {
		if pw := os.Getenv(name); pw != "" {
			return pw, nil
		}
		return "", ErrNoPassword
	}
}

// File reads the password from a file. Trailing newlines are stripped.
func File(path string) PasswordFunc {
	return func(context.Context) (string, error) {
		if path == "" {
			return "", ErrNoPassword
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read password file: %w", err)
		}
		pw := strings.TrimRight(string(data), "\r\n")
		if pw == "" {
			return "", ErrNoPassword
		}
		return pw, nil
	}
}

// Keyring reads the password from the secret store.
func Keyring(store *secrets.Store) PasswordFunc {
	return func(context.Context) (string, error) {
		if store == nil {
			return "", ErrNoPassword
		}
		pw, err := store.Get(PasswordKey)
		if errors.Is(err, secrets.ErrNotFound) || (err == nil && pw == "") {
			return "", ErrNoPassword
		}
		return pw, err
	}
}

// KernelKeyring reads the password from the Linux kernel keyring.
func KernelKeyring() PasswordFunc {
	return func(context.Context) (string, error) {
		pw, err := secrets.RetrieveKernel(KernelPasswordKey)
		if err != nil || pw == "" {
			return "", ErrNoPassword
		}
		return pw, nil
	}
}

// Prompt asks for the password on the terminal with echo disabled.
// It yields ErrNoPassword when stdin is not a terminal.
func Prompt(label string) PasswordFunc {
	return func(context.Context) (string, error) {
		fd := int(os.Stdin.Fd())
		if !term.IsTerminal(fd) {
			return "", ErrNoPassword
		}
		fmt.Fprint(os.Stderr, label)
		pw, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(pw), nil
	}
}

// Chain tries each source in order and returns the first password found.
// Sources failing with anything other than ErrNoPassword are logged and skipped.
func Chain(sources ...PasswordFunc) PasswordFunc {
	return func(ctx context.Context) (string, error) {
		for _, src := range sources {
			if err := ctx.Err(); err != nil {
				return "", err
			}
			pw, err := src(ctx)
			if err == nil && pw != "" {
				return pw, nil
			}
			if err != nil && !errors.Is(err, ErrNoPassword) {
				logging.Debug("password source failed", logging.Component("wallet"), logging.Err(err))
			}
		}
		return "", ErrNoPassword
	}
}
