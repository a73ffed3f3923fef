package lenstest

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/golang-jwt/jwt/v5"

	"github.com/lenspost/lenspost/internal/logging"
	"github.com/lenspost/lenspost/pkg/types"
)

// Token roles carried in the "role" claim.
const (
	roleAccess  = "normal"
	roleRefresh = "refresh"
)

var (
	errUnknownChallenge = errors.New("no pending challenge for address")
	errChallengeExpired = errors.New("challenge expired")
	errBadSignature     = errors.New("signature does not match address")
	errBadToken         = errors.New("invalid or expired token")
)

type challenge struct {
	address   string
	text      string
	expiresAt time.Time
}

// issueChallenge replaces any pending challenge of address with a new one.
func (s *Server) issueChallenge(address string) (string, error) {
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("invalid address %q", address)
	}
	address = strings.ToLower(address)

	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	now := s.now()
	text := fmt.Sprintf("Sign in with your wallet.\n\nWallet: %s\nNonce: %s\nIssued at: %s",
		address, hex.EncodeToString(nonce), now.UTC().Format(time.RFC3339))

	s.mu.Lock()
	defer s.mu.Unlock()

	for addr, c := range s.challenges {
		if now.After(c.expiresAt) {
			delete(s.challenges, addr)
		}
	}
	s.challenges[address] = &challenge{
		address:   address,
		text:      text,
		expiresAt: now.Add(s.cfg.ChallengeTTL),
	}

	logging.Debug("challenge issued", logging.Component("lenstest"), logging.Address(address))
	return text, nil
}

// consumeChallenge verifies signature over the pending challenge of address.
// A challenge is usable once: it is removed on success and on expiry.
func (s *Server) consumeChallenge(address, signature string) error {
	if !common.IsHexAddress(address) {
		return fmt.Errorf("invalid address %q", address)
	}
	address = strings.ToLower(address)

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.challenges[address]
	if !ok {
		return errUnknownChallenge
	}
	if s.now().After(c.expiresAt) {
		delete(s.challenges, address)
		return errChallengeExpired
	}

	recovered, err := recoverSigner(c.text, signature)
	if err != nil {
		return err
	}
	if strings.ToLower(recovered.Hex()) != address {
		logging.Warn("challenge signature mismatch",
			logging.Component("lenstest"),
			"claimed", address,
			"recovered", recovered.Hex(),
		)
		return errBadSignature
	}

	delete(s.challenges, address)
	return nil
}

// recoverSigner returns the address that produced an EIP-191 personal_sign
// signature over text.
func recoverSigner(text, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid signature format: %w", err)
	}
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("invalid signature length: expected %d, got %d", crypto.SignatureLength, len(sig))
	}
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(text)), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// issueSession signs a new access/refresh token pair for address.
func (s *Server) issueSession(address string) (types.Session, error) {
	access, err := s.signToken(address, roleAccess, s.cfg.AccessTTL)
	if err != nil {
		return types.Session{}, err
	}
	refresh, err := s.signToken(address, roleRefresh, s.cfg.RefreshTTL)
	if err != nil {
		return types.Session{}, err
	}
	return types.Session{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *Server) signToken(address, role string, ttl time.Duration) (string, error) {
	jti := make([]byte, 8)
	if _, err := rand.Read(jti); err != nil {
		return "", fmt.Errorf("failed to generate token id: %w", err)
	}

	s.mu.Lock()
	gen := s.generation
	s.mu.Unlock()

	now := s.now()
	claims := jwt.MapClaims{
		"id":   strings.ToLower(address),
		"role": role,
		"gen":  gen,
		"jti":  hex.EncodeToString(jti),
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// parseToken validates a token of the given role and returns its address.
func (s *Server) parseToken(raw, role string) (string, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errBadToken, err)
	}

	if r, _ := claims["role"].(string); r != role {
		return "", fmt.Errorf("%w: wrong token role", errBadToken)
	}
	gen, _ := claims["gen"].(float64)
	s.mu.Lock()
	current := s.generation
	s.mu.Unlock()
	if int64(gen) != current {
		return "", fmt.Errorf("%w: token revoked", errBadToken)
	}

	address, _ := claims["id"].(string)
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("%w: missing subject", errBadToken)
	}
	return address, nil
}
