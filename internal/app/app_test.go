package app

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/99designs/keyring"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/lenspost/lenspost/internal/auth"
	"github.com/lenspost/lenspost/internal/chain"
	"github.com/lenspost/lenspost/internal/lens"
	"github.com/lenspost/lenspost/internal/lenstest"
	"github.com/lenspost/lenspost/internal/publish"
	"github.com/lenspost/lenspost/internal/secrets"
	"github.com/lenspost/lenspost/internal/session"
	"github.com/lenspost/lenspost/internal/storage"
	"github.com/lenspost/lenspost/internal/wallet"
	"github.com/lenspost/lenspost/pkg/types"
)

type memUploader struct {
	mu    sync.Mutex
	calls int
}

func (u *memUploader) AddJSON(_ context.Context, _ any) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls++
	return fmt.Sprintf("QmUpload%d", u.calls), nil
}

type env struct {
	srv      *lenstest.Server
	wallet   *wallet.Wallet
	api      *lens.Client
	hub      *chain.LensHub
	uploader *memUploader
	tokens   *session.TokenStore
}

func newEnv(t *testing.T, cfg lenstest.Config) *env {
	t.Helper()

	srv, err := lenstest.NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}

	return &env{
		srv:      srv,
		wallet:   wallet.FromKey(key),
		api:      lens.NewClient(ts.URL, lens.WithHTTPClient(ts.Client())),
		hub:      chain.NewMockLensHub(lenstest.DefaultLensHub, chain.LensHubOptions{}),
		uploader: &memUploader{},
		tokens:   session.NewTokenStore(secrets.NewStore(keyring.NewArrayKeyring(nil), "memory")),
	}
}

func (e *env) app() *App {
	return New(Deps{
		Wallet:    e.wallet,
		API:       e.api,
		Uploader:  e.uploader,
		Submitter: e.hub,
		Tokens:    e.tokens,
		Publish:   publish.Options{FollowerOnlyCollect: true},
	})
}

func (e *env) withProfile() *env {
	e.srv.AddProfile(e.wallet.Address(), types.Profile{ID: "0x2a", Handle: "alice"})
	return e
}

func TestConnectLoginPublish(t *testing.T) {
	e := newEnv(t, lenstest.Config{}).withProfile()
	a := e.app()
	ctx := context.Background()

	st, err := a.Connect(ctx)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if st.Address != e.wallet.Address().Hex() || st.Profile.Handle != "alice" {
		t.Fatalf("unexpected state after connect: %+v", st)
	}

	st, err = a.Login(ctx)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !st.Authenticated() || a.HandshakeState() != auth.Authenticated {
		t.Fatal("expected authenticated state")
	}

	addr, stored, _ := e.tokens.Load()
	if addr != e.wallet.Address().Hex() || stored.AccessToken != st.Session.AccessToken {
		t.Error("session tokens should be persisted with the address")
	}

	a.SetDraft("hello world")
	result, err := a.Publish(ctx)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if result.ContentURI != "ipfs://QmUpload1" {
		t.Errorf("content URI = %s", result.ContentURI)
	}

	st = a.State()
	if st.Draft.Text != "" {
		t.Error("draft should be consumed")
	}
	if st.Publishing || st.LastResult == nil || st.LastResult.TxHash != result.TxHash {
		t.Errorf("unexpected publish state %+v", st)
	}

	submitted := e.hub.Submitted()
	if len(submitted) != 1 || submitted[0].ContentURI != result.ContentURI {
		t.Fatalf("unexpected submissions %+v", submitted)
	}
}

func TestPublishWithoutProfile(t *testing.T) {
	e := newEnv(t, lenstest.Config{})
	a := e.app()
	ctx := context.Background()

	st, err := a.Connect(ctx)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !st.ProfileMissing {
		t.Error("expected missing profile to be recorded")
	}
	if _, err := a.Login(ctx); err != nil {
		t.Fatalf("Login: %v", err)
	}

	a.SetDraft("hello")
	_, err = a.Publish(ctx)
	if !errors.Is(err, publish.ErrNoProfile) {
		t.Fatalf("expected ErrNoProfile, got %v", err)
	}
	if e.uploader.calls != 0 {
		t.Error("nothing should be uploaded")
	}
	if a.State().Draft.Text != "hello" {
		t.Error("a rejected publish must keep the draft")
	}
}

func TestPublishRequiresLogin(t *testing.T) {
	e := newEnv(t, lenstest.Config{}).withProfile()
	a := e.app()

	if _, err := a.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	a.SetDraft("hello")

	if _, err := a.Publish(context.Background()); !errors.Is(err, publish.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestLoginBeforeConnect(t *testing.T) {
	e := newEnv(t, lenstest.Config{})
	if _, err := e.app().Login(context.Background()); !errors.Is(err, auth.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestRestoreAdoptsMatchingSession(t *testing.T) {
	e := newEnv(t, lenstest.Config{}).withProfile()
	ctx := context.Background()

	first := e.app()
	if _, err := first.ConnectAndLogin(ctx); err != nil {
		t.Fatalf("ConnectAndLogin: %v", err)
	}
	token := first.State().Session.AccessToken

	second := e.app()
	st, err := second.Restore(ctx)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if st.Session.AccessToken != token || second.HandshakeState() != auth.Authenticated {
		t.Error("stored session for the same address should be restored")
	}
	if st.Profile.ID != "0x2a" {
		t.Errorf("profile should be resolved on restore, got %+v", st.Profile)
	}
}

func TestRestoreIgnoresOtherAddress(t *testing.T) {
	e := newEnv(t, lenstest.Config{})
	if err := e.tokens.Save("0x000000000000000000000000000000000000dEaD", types.Session{AccessToken: "foreign"}); err != nil {
		t.Fatal(err)
	}

	a := e.app()
	st, err := a.Restore(context.Background())
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if st.Authenticated() {
		t.Error("tokens issued to another address must not be adopted")
	}
	if a.HandshakeState() != auth.Connected {
		t.Errorf("state = %s, want connected", a.HandshakeState())
	}
}

func TestRestoreRefreshesExpiredSession(t *testing.T) {
	e := newEnv(t, lenstest.Config{AccessTTL: time.Second}).withProfile()
	ctx := context.Background()

	first := e.app()
	if _, err := first.ConnectAndLogin(ctx); err != nil {
		t.Fatalf("ConnectAndLogin: %v", err)
	}
	old := first.State().Session

	second := e.app()
	st, err := second.Restore(ctx)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if !st.Authenticated() || st.Session.AccessToken == old.AccessToken {
		t.Error("an expired access token should be refreshed on restore")
	}
	_, stored, _ := e.tokens.Load()
	if stored.AccessToken != st.Session.AccessToken {
		t.Error("refreshed tokens should be persisted")
	}
}

func TestPublishReauthenticatesAfterRevocation(t *testing.T) {
	e := newEnv(t, lenstest.Config{}).withProfile()
	a := e.app()
	ctx := context.Background()

	if _, err := a.ConnectAndLogin(ctx); err != nil {
		t.Fatalf("ConnectAndLogin: %v", err)
	}
	old := a.State().Session.AccessToken

	e.srv.RevokeTokens()
	a.SetDraft("after revocation")
	if _, err := a.Publish(ctx); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if a.State().Session.AccessToken == old {
		t.Error("session should have been renewed")
	}
	if e.uploader.calls != 1 {
		t.Errorf("upload should happen once, got %d", e.uploader.calls)
	}
	_, stored, _ := e.tokens.Load()
	if stored.AccessToken != a.State().Session.AccessToken {
		t.Error("renewed session should be persisted")
	}
}

func TestLogoutClearsTokens(t *testing.T) {
	e := newEnv(t, lenstest.Config{}).withProfile()
	a := e.app()
	ctx := context.Background()

	if _, err := a.ConnectAndLogin(ctx); err != nil {
		t.Fatal(err)
	}
	if err := a.Logout(); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	if a.State().Authenticated() || a.HandshakeState() != auth.Connected {
		t.Error("logout should keep the connection and drop the session")
	}
	if _, stored, _ := e.tokens.Load(); stored.Valid() {
		t.Error("stored tokens should be removed")
	}

	if err := a.Disconnect(); err != nil {
		t.Fatal(err)
	}
	if a.State().Connected() || a.HandshakeState() != auth.Disconnected {
		t.Error("disconnect should reset everything")
	}
}

func TestFailedReloginKeepsSession(t *testing.T) {
	e := newEnv(t, lenstest.Config{}).withProfile()
	a := e.app()
	ctx := context.Background()

	st, err := a.ConnectAndLogin(ctx)
	if err != nil {
		t.Fatalf("ConnectAndLogin: %v", err)
	}
	held := st.Session

	e.srv.FailOperation(lens.OpAuthenticate, 1)
	if _, err := a.Login(ctx); err == nil {
		t.Fatal("expected re-login to fail")
	}

	if a.HandshakeState() != auth.Authenticated {
		t.Errorf("handshake = %s, want authenticated", a.HandshakeState())
	}
	st = a.State()
	if !st.Authenticated() || st.Session != held {
		t.Errorf("session store should keep the held session, got %+v", st.Session)
	}
	if _, stored, _ := e.tokens.Load(); stored != held {
		t.Errorf("persisted session changed to %+v", stored)
	}

	if _, err := a.Login(ctx); err != nil {
		t.Fatalf("login after recovery: %v", err)
	}
}

type blockingUploader struct {
	started chan struct{}
	release chan struct{}
}

func (u *blockingUploader) AddJSON(ctx context.Context, _ any) (string, error) {
	close(u.started)
	select {
	case <-u.release:
		return "QmBlocked", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func TestPublishWhileInFlightKeepsDraft(t *testing.T) {
	e := newEnv(t, lenstest.Config{}).withProfile()
	up := &blockingUploader{started: make(chan struct{}), release: make(chan struct{})}
	a := New(Deps{
		Wallet:    e.wallet,
		API:       e.api,
		Uploader:  up,
		Submitter: e.hub,
		Tokens:    e.tokens,
	})
	ctx := context.Background()

	if _, err := a.ConnectAndLogin(ctx); err != nil {
		t.Fatalf("ConnectAndLogin: %v", err)
	}
	a.SetDraft("first")

	done := make(chan error, 1)
	go func() {
		_, err := a.Publish(ctx)
		done <- err
	}()

	select {
	case <-up.started:
	case <-time.After(5 * time.Second):
		t.Fatal("first publish never reached the upload")
	}

	a.SetDraft("second")
	if _, err := a.Publish(ctx); !errors.Is(err, publish.ErrPublishInFlight) {
		t.Fatalf("expected ErrPublishInFlight, got %v", err)
	}
	if got := a.State().Draft.Text; got != "second" {
		t.Errorf("rejected publish should keep the draft, got %q", got)
	}

	close(up.release)
	if err := <-done; err != nil {
		t.Fatalf("first publish: %v", err)
	}
	if got := a.State().Draft.Text; got != "second" {
		t.Errorf("draft = %q after first publish", got)
	}
}

func TestExplain(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{fmt.Errorf("x: %w", wallet.ErrWalletUnavailable), "No usable wallet"},
		{auth.ErrNotConnected, "lenspost connect"},
		{&publish.StepError{Step: publish.StepTypedData, Err: lens.ErrUnauthorized}, "lenspost login"},
		{publish.ErrNoProfile, "no default Lens profile"},
		{fmt.Errorf("%w: too long", publish.ErrValidationFailed), "too long"},
		{fmt.Errorf("%w: boom", storage.ErrUpload), "IPFS"},
		{fmt.Errorf("%w: 3 -> 3", chain.ErrPubCountUnchanged), "publication count"},
		{context.DeadlineExceeded, "timed out"},
		{errors.New("something else"), "something else"},
	}

	for _, tt := range tests {
		got := Explain(tt.err)
		if tt.want == "" && got != "" {
			t.Errorf("Explain(nil) = %q", got)
			continue
		}
		if tt.want != "" && !strings.Contains(got, tt.want) {
			t.Errorf("Explain(%v) = %q, want it to mention %q", tt.err, got, tt.want)
		}
	}
}
