package chain

import (
	"bytes"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"
)

func testSignature(t *testing.T) []byte {
	t.Helper()
	key, err := crypto.HexToECDSA("ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")
	if err != nil {
		t.Fatal(err)
	}
	sig, err := crypto.Sign(accounts.TextHash([]byte("hello")), key)
	if err != nil {
		t.Fatal(err)
	}
	sig[64] += 27
	return sig
}

func TestSplitJoinRoundTrip(t *testing.T) {
	sig := testSignature(t)

	parts, err := SplitSignature(sig)
	if err != nil {
		t.Fatalf("SplitSignature failed: %v", err)
	}
	if !bytes.Equal(parts.R[:], sig[:32]) || !bytes.Equal(parts.S[:], sig[32:64]) || parts.V != sig[64] {
		t.Errorf("split parts do not match signature")
	}
	if !bytes.Equal(parts.Join(), sig) {
		t.Errorf("Join(Split(sig)) != sig")
	}
}

func TestSplitSignatureBothRecoveryIDs(t *testing.T) {
	for _, v := range []byte{27, 28} {
		sig := make([]byte, 65)
		sig[0], sig[32], sig[64] = 1, 2, v
		parts, err := SplitSignature(sig)
		if err != nil {
			t.Fatalf("v=%d: %v", v, err)
		}
		if !bytes.Equal(parts.Join(), sig) {
			t.Errorf("v=%d: round trip mismatch", v)
		}
	}
}

func TestSplitSignatureNormalisesV(t *testing.T) {
	sig := testSignature(t)
	raw := append([]byte(nil), sig...)
	raw[64] -= 27

	parts, err := SplitSignature(raw)
	if err != nil {
		t.Fatalf("SplitSignature failed: %v", err)
	}
	if parts.V != sig[64] {
		t.Errorf("expected v=%d, got %d", sig[64], parts.V)
	}
	if !bytes.Equal(parts.Join(), sig) {
		t.Error("normalised signature should join to the canonical form")
	}
	if bytes.Equal(parts.Join(), raw) {
		t.Error("a 0/1 recovery id should not survive the round trip")
	}
}

func TestSplitSignatureCompact(t *testing.T) {
	sig := testSignature(t)

	compact := append([]byte(nil), sig[:64]...)
	if sig[64] == 28 {
		compact[32] |= 0x80
	}

	parts, err := SplitSignature(compact)
	if err != nil {
		t.Fatalf("SplitSignature failed: %v", err)
	}
	if !bytes.Equal(parts.Join(), sig) {
		t.Error("compact signature should expand to the canonical form")
	}
	if len(parts.Join()) != 65 {
		t.Errorf("joined length = %d, want 65", len(parts.Join()))
	}
}

func TestSplitSignatureInvalid(t *testing.T) {
	tests := map[string][]byte{
		"short":   make([]byte, 10),
		"bad v":   append(make([]byte, 64), 5),
		"too big": make([]byte, 66),
	}
	for name, sig := range tests {
		if _, err := SplitSignature(sig); !errors.Is(err, ErrInvalidSignature) {
			t.Errorf("%s: expected ErrInvalidSignature, got %v", name, err)
		}
	}
}

func TestSignatureHex(t *testing.T) {
	var s Signature
	s.V = 27
	h := s.Hex()
	if len(h) != 2+130 || h[:2] != "0x" || h[len(h)-2:] != "1b" {
		t.Errorf("unexpected hex %s", h)
	}
}
