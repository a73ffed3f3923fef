package commands

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lenspost/lenspost/internal/chain"
	"github.com/lenspost/lenspost/internal/config"
	"github.com/lenspost/lenspost/internal/doctor"
	"github.com/lenspost/lenspost/internal/lens"
	"github.com/lenspost/lenspost/internal/logging"
	"github.com/lenspost/lenspost/internal/storage"
	"github.com/lenspost/lenspost/internal/wallet"
)

// errUnhealthy makes the process exit non-zero after a failed check.
var errUnhealthy = errors.New("one or more checks failed")

// NewDoctorCmd creates the doctor command
func NewDoctorCmd() *cobra.Command {
	var (
		jsonOutput bool
		category   string
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that everything needed to post is in place",
		Long: `Run preflight checks: config file, IPFS credentials, wallet, Lens API
(and the wallet's default profile), IPFS API and RPC endpoint.

Examples:
  lenspost doctor
  lenspost doctor --category network
  lenspost doctor --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath()
			if err := config.LoadEnv(".env", filepath.Join(filepath.Dir(path), ".env")); err != nil {
				return err
			}

			// A broken config is reported by the config check; the
			// remaining checks run against the defaults.
			cfg, err := config.Load(path)
			if err != nil {
				cfg = config.DefaultConfig()
			}
			logging.Setup(os.Stderr, cfg.Client.LogFormat, logging.ParseLevel(cfg.Client.LogLevel))

			w, err := wallet.Open(cfg.Client.KeystoreDir, nil)
			if err != nil {
				return err
			}

			api := lens.NewClient(cfg.Lens.APIURL,
				lens.WithHTTPClient(&http.Client{Timeout: cfg.LensTimeout()}))

			rpc := chain.NewClient(cfg.ChainClientConfig())
			defer rpc.Close()

			checkers := []doctor.Checker{
				doctor.NewConfigChecker(path),
				doctor.NewCredentialsChecker(os.Getenv(config.EnvIPFSProjectID), os.Getenv(config.EnvIPFSProjectSecret)),
				doctor.NewWalletChecker(w),
				doctor.NewProfileChecker(api, w),
			}
			if ipfs, err := storage.NewClient(cfg.StorageConfig()); err == nil {
				checkers = append(checkers, doctor.NewIPFSChecker(ipfs, ipfs.APIURL()))
			}
			checkers = append(checkers, doctor.NewRPCChecker(rpc, cfg.Chain.RPCURL))

			ctx, cancel := commandContext(cmd)
			defer cancel()

			d := doctor.New(doctor.Options{
				JSON:     jsonOutput,
				Category: doctor.Category(category),
			}, os.Stdout, isTTY(), checkers...)

			report, err := d.Run(ctx)
			if err != nil {
				return err
			}
			if !report.Summary.IsHealthy() {
				return errUnhealthy
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the report as JSON")
	cmd.Flags().StringVar(&category, "category", "", "Only run one category: config, wallet or network")
	return cmd
}
