package session

import (
	"testing"
	"time"

	"github.com/99designs/keyring"
	"github.com/golang-jwt/jwt/v5"

	"github.com/lenspost/lenspost/internal/secrets"
	"github.com/lenspost/lenspost/pkg/types"
)

func newTokenStore() *TokenStore {
	return NewTokenStore(secrets.NewStore(keyring.NewArrayKeyring(nil), "memory"))
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":  "0xabc",
		"exp": exp.Unix(),
	})
	s, err := tok.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestTokenStoreRoundTrip(t *testing.T) {
	ts := newTokenStore()

	addr, session, err := ts.Load()
	if err != nil {
		t.Fatalf("Load on empty store failed: %v", err)
	}
	if addr != "" || session.Valid() {
		t.Errorf("expected empty session, got %q %+v", addr, session)
	}

	want := types.Session{AccessToken: "access", RefreshToken: "refresh"}
	if err := ts.Save("0xabc", want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	addr, session, err = ts.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if addr != "0xabc" || session != want {
		t.Errorf("unexpected loaded session %q %+v", addr, session)
	}

	if err := ts.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	_, session, _ = ts.Load()
	if session.Valid() {
		t.Error("session should be cleared")
	}
}

func TestTokenStoreLastWriteWins(t *testing.T) {
	ts := newTokenStore()
	_ = ts.Save("0xabc", types.Session{AccessToken: "first", RefreshToken: "r1"})
	_ = ts.Save("0xabc", types.Session{AccessToken: "second", RefreshToken: "r2"})

	_, session, _ := ts.Load()
	if session.AccessToken != "second" || session.RefreshToken != "r2" {
		t.Errorf("expected last write, got %+v", session)
	}
}

func TestExpiresAt(t *testing.T) {
	exp := time.Now().Add(30 * time.Minute).Truncate(time.Second)
	got, err := ExpiresAt(signedToken(t, exp))
	if err != nil {
		t.Fatalf("ExpiresAt failed: %v", err)
	}
	if !got.Equal(exp) {
		t.Errorf("expected %v, got %v", exp, got)
	}

	if _, err := ExpiresAt("not-a-jwt"); err == nil {
		t.Error("expected error for malformed token")
	}
}

func TestExpired(t *testing.T) {
	now := time.Now()
	fresh := signedToken(t, now.Add(time.Hour))
	stale := signedToken(t, now.Add(-time.Minute))
	soon := signedToken(t, now.Add(30*time.Second))

	if Expired(fresh, now, time.Minute) {
		t.Error("fresh token should not be expired")
	}
	if !Expired(stale, now, 0) {
		t.Error("stale token should be expired")
	}
	if !Expired(soon, now, time.Minute) {
		t.Error("token expiring within skew should count as expired")
	}
	if !Expired("garbage", now, 0) {
		t.Error("undecodable token should count as expired")
	}
}
