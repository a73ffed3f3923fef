// Package lenstest is an in-memory stand-in for the Lens GraphQL API. It
// issues single-use challenges, verifies wallet signatures, signs JWT
// sessions and builds PostWithSig typed data, so the client can be exercised
// offline and in tests.
package lenstest

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/lenspost/lenspost/internal/logging"
	"github.com/lenspost/lenspost/internal/metrics"
	"github.com/lenspost/lenspost/internal/util"
	"github.com/lenspost/lenspost/pkg/types"
)

// Default module addresses of the Mumbai deployment.
var (
	DefaultLensHub                     = common.HexToAddress("0x60Ae865ee4C725cd04353b5AAb364553f56ceF82")
	DefaultFreeCollectModule           = common.HexToAddress("0x0BE6bD7092ee83D44a6eC1D949626FeE48caB30c")
	DefaultFollowerOnlyReferenceModule = common.HexToAddress("0x7Ea109eC988a0200A1F79Ae9b78590F92D357a16")
)

// Config configures the development API.
type Config struct {
	ChainID       int64
	LensHub       common.Address
	Secret        []byte
	ChallengeTTL  time.Duration
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	TypedDataTTL  time.Duration
	MaxContentLen int
	// RateLimit is requests per second across all clients; zero disables it.
	RateLimit rate.Limit
	Burst     int
}

// DefaultConfig returns settings matching the Mumbai deployment.
func DefaultConfig() Config {
	return Config{
		ChainID:       80001,
		LensHub:       DefaultLensHub,
		ChallengeTTL:  5 * time.Minute,
		AccessTTL:     30 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		TypedDataTTL:  30 * time.Minute,
		MaxContentLen: 30000,
		RateLimit:     50,
		Burst:         100,
	}
}

// Server is the development API. Create it with NewServer.
type Server struct {
	cfg     Config
	router  chi.Router
	limiter *rate.Limiter
	metrics *metrics.Collector
	now     func() time.Time

	mu         sync.Mutex
	challenges map[string]*challenge
	profiles   map[string]types.Profile
	// keys of profiles that came from LoadProfiles
	fileProfiles map[string]struct{}
	nonces       map[string]int64
	faults       map[string]int
	generation   int64
}

// NewServer builds the router. A random signing secret is generated when
// cfg.Secret is empty.
func NewServer(cfg Config) (*Server, error) {
	def := DefaultConfig()
	if cfg.ChainID == 0 {
		cfg.ChainID = def.ChainID
	}
	if cfg.LensHub == (common.Address{}) {
		cfg.LensHub = def.LensHub
	}
	if cfg.ChallengeTTL == 0 {
		cfg.ChallengeTTL = def.ChallengeTTL
	}
	if cfg.AccessTTL == 0 {
		cfg.AccessTTL = def.AccessTTL
	}
	if cfg.RefreshTTL == 0 {
		cfg.RefreshTTL = def.RefreshTTL
	}
	if cfg.TypedDataTTL == 0 {
		cfg.TypedDataTTL = def.TypedDataTTL
	}
	if cfg.MaxContentLen == 0 {
		cfg.MaxContentLen = def.MaxContentLen
	}
	if len(cfg.Secret) == 0 {
		cfg.Secret = make([]byte, 32)
		if _, err := rand.Read(cfg.Secret); err != nil {
			return nil, fmt.Errorf("failed to generate signing secret: %w", err)
		}
	}

	s := &Server{
		cfg:        cfg,
		metrics:    metrics.NewCollector(),
		now:        time.Now,
		challenges: make(map[string]*challenge),
		profiles:   make(map[string]types.Profile),
		nonces:     make(map[string]int64),
		faults:     make(map[string]int),
	}
	if cfg.RateLimit > 0 {
		s.limiter = rate.NewLimiter(cfg.RateLimit, cfg.Burst)
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(s.rateLimit)
	r.Post("/", s.handleGraphQL)
	r.Handle("/metrics", s.metrics.Handler())
	s.router = r

	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Metrics returns the server-side request counters.
func (s *Server) Metrics() *metrics.Collector {
	return s.metrics
}

// AddProfile registers profile as the default profile of address.
func (s *Server) AddProfile(address common.Address, profile types.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[strings.ToLower(address.Hex())] = profile
}

// FailOperation makes the next n requests of op fail with 503.
func (s *Server) FailOperation(op string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = n
}

// RevokeTokens invalidates every token issued so far.
func (s *Server) RevokeTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
}

// SetClock replaces the time source.
func (s *Server) SetClock(now func() time.Time) {
	s.now = now
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	util.SafeGo("lenstest-server", func() {
		errCh <- srv.ListenAndServe()
	})

	logging.Info("development API listening", logging.Component("lenstest"), "addr", addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down: %w", err)
		}
		return nil
	}
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			logging.Warn("rate limit exceeded", logging.Component("lenstest"), "remote", r.RemoteAddr)
			writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// takeFault consumes one injected failure of op.
func (s *Server) takeFault(op string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.faults[op] > 0 {
		s.faults[op]--
		return true
	}
	return false
}
