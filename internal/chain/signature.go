package chain

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ErrInvalidSignature is returned for signatures that cannot be split.
var ErrInvalidSignature = errors.New("invalid signature")

// Signature is an ECDSA signature in contract form.
type Signature struct {
	V uint8
	R [32]byte
	S [32]byte
}

// SplitSignature splits a 65-byte r||s||v signature, or a 64-byte compact
// (EIP-2098) one, into its parts. v in {0, 1} is normalised to {27, 28}.
//
// Join(SplitSignature(sig)) reproduces sig byte for byte only when sig is a
// 65-byte signature with v already 27 or 28. Compact input comes back as 65
// bytes and a 0/1 recovery id comes back as 27/28.
func SplitSignature(sig []byte) (Signature, error) {
	var out Signature

	switch len(sig) {
	case 65:
		copy(out.R[:], sig[:32])
		copy(out.S[:], sig[32:64])
		out.V = sig[64]
		if out.V < 27 {
			out.V += 27
		}
	case 64:
		copy(out.R[:], sig[:32])
		copy(out.S[:], sig[32:64])
		out.V = 27 + (out.S[0] >> 7)
		out.S[0] &= 0x7f
	default:
		return Signature{}, fmt.Errorf("%w: length %d", ErrInvalidSignature, len(sig))
	}

	if out.V != 27 && out.V != 28 {
		return Signature{}, fmt.Errorf("%w: v=%d", ErrInvalidSignature, out.V)
	}
	return out, nil
}

// Join returns the 65-byte r||s||v encoding.
func (s Signature) Join() []byte {
	out := make([]byte, 65)
	copy(out[:32], s.R[:])
	copy(out[32:64], s.S[:])
	out[64] = s.V
	return out
}

// Hex returns the 0x-prefixed joined signature.
func (s Signature) Hex() string {
	return hexutil.Encode(s.Join())
}
