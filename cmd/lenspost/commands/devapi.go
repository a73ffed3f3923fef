package commands

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/lenspost/lenspost/internal/lenstest"
	"github.com/lenspost/lenspost/internal/logging"
	"github.com/lenspost/lenspost/internal/util"
	"github.com/lenspost/lenspost/pkg/types"
)

// profileFlag is one --profile value: address=id:handle.
type profileFlag struct {
	Address common.Address
	Profile types.Profile
}

func parseProfileFlag(raw string) (profileFlag, error) {
	addr, rest, ok := strings.Cut(raw, "=")
	if !ok || !common.IsHexAddress(addr) {
		return profileFlag{}, fmt.Errorf("invalid profile %q: want 0xADDRESS=ID:HANDLE", raw)
	}
	id, handle, ok := strings.Cut(rest, ":")
	if !ok || id == "" || handle == "" {
		return profileFlag{}, fmt.Errorf("invalid profile %q: want 0xADDRESS=ID:HANDLE", raw)
	}
	return profileFlag{
		Address: common.HexToAddress(addr),
		Profile: types.Profile{ID: id, Handle: handle},
	}, nil
}

// NewDevAPICmd creates the dev-api command
func NewDevAPICmd() *cobra.Command {
	var (
		listen       string
		profiles     []string
		profilesFile string
	)

	cmd := &cobra.Command{
		Use:   "dev-api",
		Short: "Run a local stand-in of the Lens API",
		Long: `Run an in-memory stand-in of the Lens GraphQL API for offline development.

It issues challenges, verifies signatures, hands out JWT access tokens,
validates metadata and builds PostWithSig typed data for the configured
LensHub. Point lens.api_url at it (or use: lenspost config init --network local).

Examples:
  lenspost dev-api
  lenspost dev-api --profile 0xAbC...=0x01:alice.test
  lenspost dev-api --profiles-file profiles.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			parsed := make([]profileFlag, 0, len(profiles))
			for _, raw := range profiles {
				p, err := parseProfileFlag(raw)
				if err != nil {
					return err
				}
				parsed = append(parsed, p)
			}

			if listen == "" {
				listen = cfg.DevAPI.ListenAddr
			}

			srvCfg := lenstest.DefaultConfig()
			srvCfg.ChainID = cfg.Chain.ChainID
			srvCfg.LensHub = cfg.LensHub()
			srvCfg.RateLimit = rate.Limit(cfg.DevAPI.RateLimit)
			srvCfg.Burst = cfg.DevAPI.RateBurst

			srv, err := lenstest.NewServer(srvCfg)
			if err != nil {
				return err
			}
			for _, p := range parsed {
				srv.AddProfile(p.Address, p.Profile)
			}
			loaded := 0
			if profilesFile != "" {
				if loaded, err = srv.LoadProfiles(profilesFile); err != nil {
					return err
				}
			}

			fmt.Println(StatusBox("Development API", [][2]string{
				{"Listen", "http://" + listen},
				{"Chain ID", fmt.Sprintf("%d", srvCfg.ChainID)},
				{"LensHub", srvCfg.LensHub.Hex()},
				{"Profiles", fmt.Sprintf("%d", len(parsed)+loaded)},
			}))
			fmt.Println(Hint("Press Ctrl+C to stop"))

			// No --timeout here; the server runs until interrupted.
			Timeout = 0
			ctx, cancel := commandContext(cmd)
			defer cancel()

			if profilesFile != "" {
				util.SafeGo("profiles-watcher", func() {
					if err := srv.WatchProfiles(ctx, profilesFile); err != nil {
						logging.Warn("profiles file will not be reloaded",
							logging.Component("cli"),
							logging.Err(err))
					}
				})
			}
			return srv.ListenAndServe(ctx, listen)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (default: dev_api.listen_addr)")
	cmd.Flags().StringArrayVar(&profiles, "profile", nil, "Default profile as 0xADDRESS=ID:HANDLE (repeatable)")
	cmd.Flags().StringVar(&profilesFile, "profiles-file", "", "YAML file of default profiles, reloaded on change")
	return cmd
}
