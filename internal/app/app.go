// Package app is the controller behind the command line. It owns the session
// store and drives wallet connection, login and publishing.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lenspost/lenspost/internal/auth"
	"github.com/lenspost/lenspost/internal/lens"
	"github.com/lenspost/lenspost/internal/logging"
	"github.com/lenspost/lenspost/internal/metrics"
	"github.com/lenspost/lenspost/internal/publish"
	"github.com/lenspost/lenspost/internal/session"
	"github.com/lenspost/lenspost/pkg/types"
)

// tokenSkew is how close to expiry a stored access token is treated as expired.
const tokenSkew = 30 * time.Second

// Wallet is everything the app needs from the wallet.
type Wallet interface {
	auth.Wallet
	publish.Signer
	ListAccounts(ctx context.Context) []common.Address
}

// API is everything the app needs from the social-graph API.
type API interface {
	auth.API
	publish.API
	DefaultProfile(ctx context.Context, address string) (types.Profile, error)
}

// Tokens persists the session between runs.
type Tokens interface {
	Load() (string, types.Session, error)
	Save(address string, s types.Session) error
	Clear() error
}

// Deps wires the app. Metrics may be nil.
type Deps struct {
	Wallet    Wallet
	API       API
	Uploader  publish.Uploader
	Submitter publish.Submitter
	Tokens    Tokens
	Metrics   *metrics.Collector
	Publish   publish.Options
}

// App is the single owner of the session store.
type App struct {
	wallet Wallet
	api    API
	tokens Tokens

	handshake *auth.Handshake
	publisher *publish.Publisher
	store     *session.Store

	mu         sync.Mutex
	publishing bool
}

// New creates an app in the disconnected state.
func New(d Deps) *App {
	opts := d.Publish
	if opts.Metrics == nil {
		opts.Metrics = d.Metrics
	}
	return &App{
		wallet:    d.Wallet,
		api:       d.API,
		tokens:    d.Tokens,
		handshake: auth.NewHandshake(d.Wallet, d.API, d.Metrics),
		publisher: publish.NewPublisher(d.API, d.Uploader, d.Wallet, d.Submitter, opts),
		store:     session.NewStore(session.State{}),
	}
}

// State returns a snapshot of the session state.
func (a *App) State() session.State {
	return a.store.Snapshot()
}

// HandshakeState returns the login state.
func (a *App) HandshakeState() auth.State {
	return a.handshake.State()
}

// Restore picks up the wallet account and persisted tokens without prompting.
// Tokens are only adopted when they were issued to the same address; an
// expired access token is refreshed, and dropped if that fails.
func (a *App) Restore(ctx context.Context) (session.State, error) {
	accounts := a.wallet.ListAccounts(ctx)
	if len(accounts) == 0 {
		return a.store.Snapshot(), nil
	}
	addr := accounts[0]
	a.store.Dispatch(session.WalletConnected{Address: addr.Hex()})

	storedAddr, stored, err := a.tokens.Load()
	if err != nil {
		logging.Warn("failed to load stored session", logging.Component("app"), logging.Err(err))
		stored = types.Session{}
	}

	switch {
	case !stored.Valid() || !common.IsHexAddress(storedAddr) || common.HexToAddress(storedAddr) != addr:
		a.handshake.Restore(addr, types.Session{})
	case session.Expired(stored.AccessToken, time.Now(), tokenSkew):
		a.handshake.Restore(addr, stored)
		refreshed, err := a.handshake.Refresh(ctx)
		if err != nil {
			logging.Info("stored session expired", logging.Component("app"), logging.Err(err))
			if err := a.tokens.Clear(); err != nil {
				logging.Warn("failed to clear stored session", logging.Component("app"), logging.Err(err))
			}
			break
		}
		a.adoptSession(addr, refreshed)
	default:
		a.handshake.Restore(addr, stored)
		a.store.Dispatch(session.SessionRestored{Session: stored})
	}

	if err := a.resolveProfile(ctx, addr); err != nil {
		return a.store.Snapshot(), err
	}
	return a.store.Snapshot(), nil
}

// Connect unlocks the wallet and resolves its default profile.
func (a *App) Connect(ctx context.Context) (session.State, error) {
	addr, err := a.handshake.Connect(ctx)
	if err != nil {
		return a.store.Snapshot(), err
	}
	a.store.Dispatch(session.WalletConnected{Address: addr.Hex()})

	if err := a.resolveProfile(ctx, addr); err != nil {
		return a.store.Snapshot(), err
	}
	return a.store.Snapshot(), nil
}

func (a *App) resolveProfile(ctx context.Context, addr common.Address) error {
	profile, err := a.api.DefaultProfile(ctx, addr.Hex())
	if errors.Is(err, lens.ErrProfileNotFound) {
		a.store.Dispatch(session.ProfileNotFound{})
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to resolve default profile: %w", err)
	}
	a.store.Dispatch(session.ProfileResolved{Profile: profile})
	return nil
}

// Login runs the challenge handshake and persists the issued tokens.
func (a *App) Login(ctx context.Context) (session.State, error) {
	s, err := a.handshake.Login(ctx)
	if err != nil {
		return a.store.Snapshot(), err
	}
	a.adoptSession(a.handshake.Address(), s)
	return a.store.Snapshot(), nil
}

// ConnectAndLogin connects when needed and logs in.
func (a *App) ConnectAndLogin(ctx context.Context) (session.State, error) {
	if a.handshake.State() == auth.Disconnected {
		if _, err := a.Connect(ctx); err != nil {
			return a.store.Snapshot(), err
		}
	}
	return a.Login(ctx)
}

func (a *App) adoptSession(addr common.Address, s types.Session) {
	if err := a.tokens.Save(addr.Hex(), s); err != nil {
		logging.Warn("failed to persist session", logging.Component("app"), logging.Err(err))
	}
	a.store.Dispatch(session.Authenticated{Session: s})
}

// reauthenticate is handed to the publisher for a rejected access token.
func (a *App) reauthenticate(ctx context.Context) (types.Session, error) {
	s, err := a.handshake.Reauthenticate(ctx)
	if err != nil {
		a.store.Dispatch(session.LoggedOut{})
		return types.Session{}, err
	}
	a.adoptSession(a.handshake.Address(), s)
	return s, nil
}

// SetDraft replaces the draft text.
func (a *App) SetDraft(text string) session.State {
	return a.store.Dispatch(session.DraftEdited{Text: text})
}

// Publish publishes the current draft. Preconditions are checked before the
// draft is consumed; once the attempt starts the draft is cleared whatever
// the outcome.
func (a *App) Publish(ctx context.Context) (types.PublishResult, error) {
	a.mu.Lock()
	if a.publishing {
		a.mu.Unlock()
		return types.PublishResult{}, publish.ErrPublishInFlight
	}
	a.publishing = true
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.publishing = false
		a.mu.Unlock()
	}()

	st := a.store.Snapshot()
	req := publish.Request{
		Text:        st.Draft.Text,
		Handle:      st.Profile.Handle,
		ProfileID:   st.Profile.ID,
		Address:     common.HexToAddress(st.Address),
		AccessToken: st.Session.AccessToken,
		Reauth:      a.reauthenticate,
	}
	if err := a.publisher.Check(req); err != nil {
		return types.PublishResult{}, err
	}

	a.store.Dispatch(session.PublishStarted{})
	result, err := a.publisher.Publish(ctx, req)
	if err != nil {
		a.store.Dispatch(session.PublishFailed{Err: err})
		return result, err
	}
	a.store.Dispatch(session.PublishSucceeded{Result: result})
	return result, nil
}

// Logout drops the session and its persisted tokens; the wallet stays connected.
func (a *App) Logout() error {
	a.handshake.Logout()
	a.store.Dispatch(session.LoggedOut{})
	if err := a.tokens.Clear(); err != nil {
		return fmt.Errorf("failed to clear stored session: %w", err)
	}
	return nil
}

// Disconnect forgets the wallet and the session.
func (a *App) Disconnect() error {
	a.handshake.Reset()
	a.store.Dispatch(session.WalletDisconnected{})
	if err := a.tokens.Clear(); err != nil {
		return fmt.Errorf("failed to clear stored session: %w", err)
	}
	return nil
}
