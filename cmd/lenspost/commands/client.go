package commands

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/99designs/keyring"

	"github.com/lenspost/lenspost/internal/app"
	"github.com/lenspost/lenspost/internal/chain"
	"github.com/lenspost/lenspost/internal/config"
	"github.com/lenspost/lenspost/internal/lens"
	"github.com/lenspost/lenspost/internal/logging"
	"github.com/lenspost/lenspost/internal/metrics"
	"github.com/lenspost/lenspost/internal/publish"
	"github.com/lenspost/lenspost/internal/secrets"
	"github.com/lenspost/lenspost/internal/session"
	"github.com/lenspost/lenspost/internal/storage"
	"github.com/lenspost/lenspost/internal/wallet"
)

// runtimeOptions tune how a command wires the app.
type runtimeOptions struct {
	// DryRun records the LensHub call instead of sending a transaction.
	DryRun bool
	// Wait waits for the transaction receipt.
	Wait bool
}

// clientRuntime holds everything a command needs.
type clientRuntime struct {
	cfg     *config.Config
	secrets *secrets.Store
	wallet  *wallet.Wallet
	api     *lens.Client
	metrics *metrics.Collector
	chain   *chain.Client
	hub     *chain.LensHub
	app     *app.App
}

// openSecrets opens the configured keyring, or an in-memory one when none is
// usable; tokens then do not survive the process.
func openSecrets(cfg *config.Config) *secrets.Store {
	store, err := secrets.Open(secrets.Options{
		Backend: cfg.Client.KeyringBackend,
		FileDir: filepath.Join(cfg.Client.DataDir, "keyring"),
	})
	if err != nil {
		logging.Warn("keyring unavailable, session will not be saved",
			logging.Component("cli"),
			logging.Err(err))
		return secrets.NewStore(keyring.NewArrayKeyring(nil), "memory")
	}
	return store
}

// passwordSource resolves the wallet password: keyring, kernel keyring,
// environment, password file, then an interactive prompt.
func passwordSource(cfg *config.Config, store *secrets.Store) wallet.PasswordFunc {
	return wallet.Chain(
		wallet.Keyring(store),
		wallet.KernelKeyring(),
		wallet.Env(wallet.PasswordEnv),
		wallet.File(cfg.Client.WalletPasswordFile),
		wallet.Prompt("Wallet password: "),
	)
}

func newRuntime(cfg *config.Config, opts runtimeOptions) (*clientRuntime, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	rt := &clientRuntime{
		cfg:     cfg,
		secrets: openSecrets(cfg),
		metrics: metrics.NewCollector(),
	}

	w, err := wallet.Open(cfg.Client.KeystoreDir, passwordSource(cfg, rt.secrets))
	if err != nil {
		return nil, err
	}
	rt.wallet = w

	rt.api = lens.NewClient(cfg.Lens.APIURL,
		lens.WithHTTPClient(&http.Client{Timeout: cfg.LensTimeout()}),
		lens.WithRetry(cfg.LensRetry()),
		lens.WithMetrics(rt.metrics),
	)

	uploader, err := storage.NewClient(cfg.StorageConfig())
	if err != nil {
		return nil, err
	}

	if opts.DryRun {
		rt.hub = chain.NewMockLensHub(cfg.LensHub(), chain.LensHubOptions{
			WaitForReceipt: opts.Wait || cfg.Chain.WaitForReceipt,
		})
	} else {
		rt.chain = chain.NewClient(cfg.ChainClientConfig())
		rt.hub, err = chain.NewLensHub(rt.chain, cfg.LensHub(), w.PrivateKey, chain.LensHubOptions{
			WaitForReceipt: opts.Wait || cfg.Chain.WaitForReceipt,
		})
		if err != nil {
			return nil, err
		}
	}

	rt.app = app.New(app.Deps{
		Wallet:    w,
		API:       rt.api,
		Uploader:  uploader,
		Submitter: rt.hub,
		Tokens:    session.NewTokenStore(rt.secrets),
		Metrics:   rt.metrics,
		Publish: publish.Options{
			AppURL:                cfg.Lens.AppURL,
			Locale:                cfg.Lens.Locale,
			FollowerOnlyCollect:   cfg.Post.FollowerOnlyCollect,
			FollowerOnlyReference: cfg.Post.FollowerOnlyReference,
		},
	})
	return rt, nil
}

// Close locks the wallet, closes the RPC client and dumps metrics if asked.
func (rt *clientRuntime) Close() {
	if rt.chain != nil {
		rt.chain.Close()
	}
	if rt.wallet != nil {
		rt.wallet.Lock()
	}
	if MetricsDump && rt.metrics != nil {
		if err := rt.metrics.Dump(os.Stdout); err != nil {
			logging.Warn("failed to dump metrics", logging.Component("cli"), logging.Err(err))
		}
	}
}

// setup loads config and builds the runtime.
func setup(opts runtimeOptions) (*clientRuntime, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newRuntime(cfg, opts)
}
