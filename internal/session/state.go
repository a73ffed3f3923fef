// Package session holds the front-end state: connected address, profile,
// tokens, draft and the last publish outcome. Transitions are pure functions
// of (State, Event).
package session

import (
	"sync"

	"github.com/lenspost/lenspost/pkg/types"
)

// State is an immutable snapshot of the front-end.
type State struct {
	Address        string
	Profile        types.Profile
	ProfileMissing bool
	Session        types.Session
	Draft          types.Draft
	Publishing     bool
	LastResult     *types.PublishResult
	LastError      string
}

// Connected reports whether a wallet address is known.
func (s State) Connected() bool {
	return s.Address != ""
}

// Authenticated reports whether an access token is held.
func (s State) Authenticated() bool {
	return s.Session.Valid()
}

// Event is an input to Apply.
type Event interface {
	event()
}

type (
	// WalletConnected records the connected address. A different address
	// drops the profile and session of the previous one.
	WalletConnected struct{ Address string }
	// WalletDisconnected clears everything.
	WalletDisconnected struct{}
	// ProfileResolved records the default profile.
	ProfileResolved struct{ Profile types.Profile }
	// ProfileNotFound records that the address has no default profile.
	ProfileNotFound struct{}
	// SessionRestored adopts persisted tokens.
	SessionRestored struct{ Session types.Session }
	// Authenticated records freshly issued tokens.
	Authenticated struct{ Session types.Session }
	// LoggedOut drops the tokens.
	LoggedOut struct{}
	// DraftEdited replaces the draft text.
	DraftEdited struct{ Text string }
	// PublishStarted consumes the draft.
	PublishStarted struct{}
	// PublishSucceeded records a submitted post.
	PublishSucceeded struct{ Result types.PublishResult }
	// PublishFailed records a failed attempt.
	PublishFailed struct{ Err error }
)

func (WalletConnected) event()    {}
func (WalletDisconnected) event() {}
func (ProfileResolved) event()    {}
func (ProfileNotFound) event()    {}
func (SessionRestored) event()    {}
func (Authenticated) event()      {}
func (LoggedOut) event()          {}
func (DraftEdited) event()        {}
func (PublishStarted) event()     {}
func (PublishSucceeded) event()   {}
func (PublishFailed) event()      {}

// Apply returns the state after ev. s is not modified.
func Apply(s State, ev Event) State {
	switch e := ev.(type) {
	case WalletConnected:
		if s.Address != e.Address {
			s.Profile = types.Profile{}
			s.ProfileMissing = false
			s.Session = types.Session{}
		}
		s.Address = e.Address
	case WalletDisconnected:
		return State{}
	case ProfileResolved:
		s.Profile = e.Profile
		s.ProfileMissing = false
	case ProfileNotFound:
		s.Profile = types.Profile{}
		s.ProfileMissing = true
	case SessionRestored:
		s.Session = e.Session
	case Authenticated:
		s.Session = e.Session
		s.LastError = ""
	case LoggedOut:
		s.Session = types.Session{}
	case DraftEdited:
		s.Draft = types.Draft{Text: e.Text}
	case PublishStarted:
		s.Draft = types.Draft{}
		s.Publishing = true
		s.LastError = ""
	case PublishSucceeded:
		result := e.Result
		s.Publishing = false
		s.LastResult = &result
	case PublishFailed:
		s.Publishing = false
		if e.Err != nil {
			s.LastError = e.Err.Error()
		}
	}
	return s
}

// Store serializes events and owns the current State.
type Store struct {
	mu    sync.RWMutex
	state State
}

// NewStore returns a store holding initial.
func NewStore(initial State) *Store {
	return &Store{state: initial}
}

// Dispatch applies ev and returns the new state.
func (st *Store) Dispatch(ev Event) State {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.state = Apply(st.state, ev)
	return st.state
}

// Snapshot returns the current state.
func (st *Store) Snapshot() State {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.state
}
