// Package auth drives the wallet login handshake against the social-graph API:
// connect, request a challenge, sign it and exchange the signature for tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/lenspost/lenspost/internal/logging"
	"github.com/lenspost/lenspost/internal/metrics"
	"github.com/lenspost/lenspost/pkg/types"
)

// State is a handshake state.
type State int

const (
	Disconnected State = iota
	Connected
	ChallengeRequested
	Signed
	Authenticated
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	case ChallengeRequested:
		return "challenge-requested"
	case Signed:
		return "signed"
	case Authenticated:
		return "authenticated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrNotConnected is returned when Login runs before Connect.
	ErrNotConnected = errors.New("wallet not connected")
	// ErrNoRefreshToken is returned by Refresh when no refresh token is held.
	ErrNoRefreshToken = errors.New("no refresh token")
)

// Wallet is the part of the wallet the handshake needs.
type Wallet interface {
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	SignMessage(ctx context.Context, address common.Address, text string) ([]byte, error)
}

// API is the part of the social-graph API the handshake needs.
type API interface {
	Challenge(ctx context.Context, address string) (string, error)
	Authenticate(ctx context.Context, address, signature string) (types.Session, error)
	Refresh(ctx context.Context, refreshToken string) (types.Session, error)
}

// Handshake owns the login state for one wallet. It is safe for concurrent use;
// transitions are serialized.
type Handshake struct {
	wallet  Wallet
	api     API
	metrics *metrics.Collector

	mu      sync.Mutex
	state   State
	address common.Address
	session types.Session
}

// NewHandshake returns a handshake in the Disconnected state. m may be nil.
func NewHandshake(wallet Wallet, api API, m *metrics.Collector) *Handshake {
	return &Handshake{wallet: wallet, api: api, metrics: m}
}

// State returns the current state.
func (h *Handshake) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Address returns the connected address.
func (h *Handshake) Address() common.Address {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.address
}

// Session returns the current tokens; empty unless Authenticated.
func (h *Handshake) Session() types.Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session
}

// Connect asks the wallet for accounts and moves to Connected.
func (h *Handshake) Connect(ctx context.Context) (common.Address, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	accounts, err := h.wallet.RequestAccounts(ctx)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to connect wallet: %w", err)
	}
	if len(accounts) == 0 {
		return common.Address{}, errors.New("failed to connect wallet: no accounts")
	}

	if h.address != accounts[0] {
		h.session = types.Session{}
	}
	h.address = accounts[0]
	if h.state == Disconnected || !h.session.Valid() {
		h.state = Connected
	}

	logging.Info("wallet connected", logging.Component("auth"), logging.Address(h.address.Hex()))
	return h.address, nil
}

// Restore adopts a known address, and a persisted session if one is given,
// without prompting the wallet.
func (h *Handshake) Restore(address common.Address, session types.Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.address = address
	h.session = types.Session{}
	h.state = Connected
	if session.Valid() {
		h.session = session
		h.state = Authenticated
	}
}

// Login runs challenge, sign and authenticate. Every attempt requests a
// fresh challenge. On failure the state and session revert to what they were
// before the call, so a failed re-login keeps a session that is still held.
func (h *Handshake) Login(ctx context.Context) (session types.Session, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == Disconnected {
		return types.Session{}, ErrNotConnected
	}

	addr := h.address.Hex()
	log := logging.With(logging.Component("auth"), logging.Address(addr))
	prevState, prevSession := h.state, h.session

	defer func() {
		h.metrics.ObserveHandshake(err)
		if err != nil {
			h.state = prevState
			h.session = prevSession
			log.Warn("login failed", logging.Err(err))
		}
	}()

	h.state = ChallengeRequested
	text, err := h.api.Challenge(ctx, addr)
	if err != nil {
		return types.Session{}, fmt.Errorf("failed to request challenge: %w", err)
	}

	sig, err := h.wallet.SignMessage(ctx, h.address, text)
	if err != nil {
		return types.Session{}, fmt.Errorf("failed to sign challenge: %w", err)
	}
	h.state = Signed

	session, err = h.api.Authenticate(ctx, addr, hexutil.Encode(sig))
	if err != nil {
		return types.Session{}, fmt.Errorf("failed to authenticate: %w", err)
	}

	h.session = session
	h.state = Authenticated
	log.Info("authenticated")
	return session, nil
}

// Refresh renews the session with the refresh token. On failure the state
// reverts to Connected.
func (h *Handshake) Refresh(ctx context.Context) (types.Session, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == Disconnected {
		return types.Session{}, ErrNotConnected
	}
	if h.session.RefreshToken == "" {
		return types.Session{}, ErrNoRefreshToken
	}

	session, err := h.api.Refresh(ctx, h.session.RefreshToken)
	if err != nil {
		h.state = Connected
		h.session = types.Session{}
		return types.Session{}, fmt.Errorf("failed to refresh session: %w", err)
	}

	h.session = session
	h.state = Authenticated
	logging.Debug("session refreshed", logging.Component("auth"), logging.Address(h.address.Hex()))
	return session, nil
}

// Reauthenticate tries Refresh and falls back to a full Login.
func (h *Handshake) Reauthenticate(ctx context.Context) (types.Session, error) {
	session, err := h.Refresh(ctx)
	if err == nil {
		return session, nil
	}
	if errors.Is(err, ErrNotConnected) {
		return types.Session{}, err
	}
	logging.Debug("refresh failed, running full login", logging.Component("auth"), logging.Err(err))
	return h.Login(ctx)
}

// Logout drops the session and keeps the connection.
func (h *Handshake) Logout() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.session = types.Session{}
	if h.state != Disconnected {
		h.state = Connected
	}
}

// Reset returns to Disconnected.
func (h *Handshake) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.state = Disconnected
	h.address = common.Address{}
	h.session = types.Session{}
}
