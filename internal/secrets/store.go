// Package secrets stores small credentials (wallet password, API tokens) in
// the platform keyring, with an encrypted file backend as fallback.
package secrets

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/99designs/keyring"
)

const serviceName = "lenspost"

// Backend names accepted in configuration.
const (
	BackendAuto = "auto"
	BackendFile = "file"
)

// ErrNotFound is returned when no secret is stored under a key.
var ErrNotFound = errors.New("secret not found")

// Options selects and configures the keyring backend.
type Options struct {
	// Backend is "auto" (platform keyring, file fallback) or "file".
	Backend string
	// FileDir holds the encrypted file keyring.
	FileDir string
	// FilePassword unlocks the file keyring. Nil prompts on the terminal.
	FilePassword func(prompt string) (string, error)
}

// Store is a keyring scoped to the lenspost service.
type Store struct {
	ring    keyring.Keyring
	backend string
}

// NewStore wraps an already opened keyring.
func NewStore(ring keyring.Keyring, backend string) *Store {
	return &Store{ring: ring, backend: backend}
}

// Open opens the keyring described by opts.
func Open(opts Options) (*Store, error) {
	var backends []keyring.BackendType
	backendName := "encrypted file"

	switch opts.Backend {
	case "", BackendAuto:
		backends = platformBackends()
		if len(backends) > 0 {
			backendName = platformBackendName()
		}
		if opts.FileDir != "" {
			backends = append(backends, keyring.FileBackend)
		}
	case BackendFile:
		backends = []keyring.BackendType{keyring.FileBackend}
	default:
		return nil, fmt.Errorf("unknown keyring backend %q", opts.Backend)
	}

	if len(backends) == 0 {
		return nil, fmt.Errorf("no keyring backend available on %s", runtime.GOOS)
	}

	passwordFunc := keyring.PromptFunc(keyring.TerminalPrompt)
	if opts.FilePassword != nil {
		passwordFunc = opts.FilePassword
	} else if pw := os.Getenv("LENSPOST_KEYRING_PASSWORD"); pw != "" {
		passwordFunc = keyring.FixedStringPrompt(pw)
	}

	ring, err := keyring.Open(keyring.Config{
		ServiceName:                    serviceName,
		AllowedBackends:                backends,
		KeychainTrustApplication:       true,
		KeychainAccessibleWhenUnlocked: true,
		KeychainSynchronizable:         false,
		FileDir:                        opts.FileDir,
		FilePasswordFunc:               passwordFunc,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open keyring: %w", err)
	}

	return &Store{ring: ring, backend: backendName}, nil
}

// Backend returns a human-readable name of the keyring backend.
func (s *Store) Backend() string {
	return s.backend
}

// Get returns the secret stored under key, or ErrNotFound.
func (s *Store) Get(key string) (string, error) {
	item, err := s.ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s from %s: %w", key, s.backend, err)
	}
	return string(item.Data), nil
}

// Set stores value under key. label is shown by keychain UIs.
func (s *Store) Set(key, value, label string) error {
	err := s.ring.Set(keyring.Item{
		Key:         key,
		Data:        []byte(value),
		Label:       label,
		Description: "lenspost " + label,
	})
	if err != nil {
		return fmt.Errorf("failed to store %s in %s: %w", key, s.backend, err)
	}
	return nil
}

// Remove deletes key. Removing a missing key is not an error.
func (s *Store) Remove(key string) error {
	err := s.ring.Remove(key)
	if err == nil || errors.Is(err, keyring.ErrKeyNotFound) || os.IsNotExist(err) {
		return nil
	}
	return fmt.Errorf("failed to remove %s from %s: %w", key, s.backend, err)
}

func platformBackends() []keyring.BackendType {
	switch runtime.GOOS {
	case "darwin":
		return []keyring.BackendType{keyring.KeychainBackend}
	case "linux":
		return []keyring.BackendType{
			keyring.SecretServiceBackend,
			keyring.KWalletBackend,
		}
	case "windows":
		return []keyring.BackendType{keyring.WinCredBackend}
	default:
		return nil
	}
}

func platformBackendName() string {
	switch runtime.GOOS {
	case "darwin":
		return "macOS Keychain"
	case "linux":
		return "Secret Service (GNOME Keyring / KDE Wallet)"
	case "windows":
		return "Windows Credential Manager"
	default:
		return "system keyring"
	}
}
