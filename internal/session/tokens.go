package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lenspost/lenspost/internal/secrets"
	"github.com/lenspost/lenspost/pkg/types"
)

// Keys under which the session is persisted.
const (
	AccessTokenKey  = "lens-auth-token"
	RefreshTokenKey = "lens-refresh-token"
	AddressKey      = "lens-auth-address"
)

// TokenStore persists the session in the secret store. Last write wins.
type TokenStore struct {
	store *secrets.Store
}

// NewTokenStore wraps store.
func NewTokenStore(store *secrets.Store) *TokenStore {
	return &TokenStore{store: store}
}

// Load returns the persisted address and session. Missing entries yield
// empty values without error.
func (t *TokenStore) Load() (string, types.Session, error) {
	access, err := t.get(AccessTokenKey)
	if err != nil {
		return "", types.Session{}, err
	}
	refresh, err := t.get(RefreshTokenKey)
	if err != nil {
		return "", types.Session{}, err
	}
	address, err := t.get(AddressKey)
	if err != nil {
		return "", types.Session{}, err
	}
	return address, types.Session{AccessToken: access, RefreshToken: refresh}, nil
}

// Save persists session for address.
func (t *TokenStore) Save(address string, session types.Session) error {
	if err := t.store.Set(AccessTokenKey, session.AccessToken, "Lens access token"); err != nil {
		return err
	}
	if session.RefreshToken != "" {
		if err := t.store.Set(RefreshTokenKey, session.RefreshToken, "Lens refresh token"); err != nil {
			return err
		}
	}
	return t.store.Set(AddressKey, address, "Lens session address")
}

// Clear removes the persisted session.
func (t *TokenStore) Clear() error {
	var errs []error
	for _, key := range []string{AccessTokenKey, RefreshTokenKey, AddressKey} {
		if err := t.store.Remove(key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t *TokenStore) get(key string) (string, error) {
	v, err := t.store.Get(key)
	if errors.Is(err, secrets.ErrNotFound) {
		return "", nil
	}
	return v, err
}

// ExpiresAt decodes the exp claim of a JWT without verifying its signature.
func ExpiresAt(token string) (time.Time, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse token: %w", err)
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read exp claim: %w", err)
	}
	if exp == nil {
		return time.Time{}, errors.New("token has no exp claim")
	}
	return exp.Time, nil
}

// Expired reports whether token expires within skew of now. Tokens that
// cannot be decoded count as expired.
func Expired(token string, now time.Time, skew time.Duration) bool {
	exp, err := ExpiresAt(token)
	if err != nil {
		return true
	}
	return !now.Add(skew).Before(exp)
}
