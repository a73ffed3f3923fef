package commands

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/lenspost/lenspost/internal/config"
)

// network is a known Lens deployment.
type network struct {
	Label   string
	APIURL  string
	RPCURL  string
	ChainID int64
	LensHub string
}

var networks = map[string]network{
	"mumbai": {
		Label:   "Polygon Mumbai (testnet)",
		APIURL:  "https://api-mumbai.lens.dev",
		RPCURL:  "https://rpc-mumbai.maticvigil.com",
		ChainID: 80001,
		LensHub: "0x60Ae865ee4C725cd04353b5AAb364553f56ceF82",
	},
	"polygon": {
		Label:   "Polygon mainnet",
		APIURL:  "https://api.lens.dev",
		RPCURL:  "https://polygon-rpc.com",
		ChainID: 137,
		LensHub: "0xDb46d1Dc155634FbC732f92E853b10B288AD5a1d",
	},
	"local": {
		Label:   "Local development API (lenspost dev-api)",
		APIURL:  "http://127.0.0.1:3999",
		RPCURL:  "http://127.0.0.1:8545",
		ChainID: 80001,
		LensHub: "0x60Ae865ee4C725cd04353b5AAb364553f56ceF82",
	},
}

// applyNetwork points cfg at the named deployment.
func applyNetwork(cfg *config.Config, name string) error {
	n, ok := networks[name]
	if !ok {
		names := make([]string, 0, len(networks))
		for k := range networks {
			names = append(names, k)
		}
		sort.Strings(names)
		return fmt.Errorf("unknown network %q (known: %v)", name, names)
	}
	cfg.Lens.APIURL = n.APIURL
	cfg.Chain.RPCURL = n.RPCURL
	cfg.Chain.ChainID = n.ChainID
	cfg.Chain.LensHubAddress = n.LensHub
	return nil
}

// NewConfigCmd creates the config command group
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or create the configuration file",
	}
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigInitCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			out, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}

			fmt.Printf("# %s\n", configPath())
			fmt.Print(string(out))
			fmt.Println()

			creds := "not set"
			if cfg.IPFS.ProjectID != "" && cfg.IPFS.ProjectSecret != "" {
				creds = "set"
			} else if cfg.IPFS.ProjectID != "" || cfg.IPFS.ProjectSecret != "" {
				creds = "incomplete"
			}
			fmt.Println(StatusBox("Environment", [][2]string{
				{"IPFS credentials", creds},
			}))
			if creds != "set" {
				fmt.Println(Hint(fmt.Sprintf("Set %s and %s (or put them in .env)",
					config.EnvIPFSProjectID, config.EnvIPFSProjectSecret)))
			}
			return nil
		},
	}
}

func newConfigInitCmd() *cobra.Command {
	var (
		networkName    string
		nonInteractive bool
		force          bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file for a Lens deployment",
		Long: `Write a configuration file for one of the known Lens deployments.

Examples:
  lenspost config init
  lenspost config init --network polygon --non-interactive
  lenspost config init --network local --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath()
			_, statErr := os.Stat(path)
			exists := statErr == nil

			if !nonInteractive {
				overwrite := !exists || force
				form := huh.NewForm(
					huh.NewGroup(
						huh.NewSelect[string]().
							Title("Which Lens deployment?").
							Options(
								huh.NewOption(networks["mumbai"].Label, "mumbai"),
								huh.NewOption(networks["polygon"].Label, "polygon"),
								huh.NewOption(networks["local"].Label, "local"),
							).
							Value(&networkName),
					),
					huh.NewGroup(
						huh.NewConfirm().
							Title("Config file already exists. Overwrite?").
							Description(path).
							Affirmative("Overwrite").
							Negative("Keep existing").
							Value(&overwrite),
					).WithHideFunc(func() bool {
						return !exists || force
					}),
				).WithTheme(huh.ThemeBase())

				if err := form.Run(); err != nil {
					return err
				}
				force = overwrite
			}

			if exists && !force {
				return errors.New("config file already exists (use --force to overwrite)")
			}

			cfg := config.DefaultConfig()
			if err := applyNetwork(cfg, networkName); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := cfg.Save(path); err != nil {
				return err
			}

			Success("Config written to " + path)
			fmt.Println(StatusBox("Network", [][2]string{
				{"API", cfg.Lens.APIURL},
				{"RPC", cfg.Chain.RPCURL},
				{"Chain ID", fmt.Sprintf("%d", cfg.Chain.ChainID)},
				{"LensHub", cfg.Chain.LensHubAddress},
			}))
			fmt.Println(Hint("Next: lenspost wallet create"))
			return nil
		},
	}

	cmd.Flags().StringVar(&networkName, "network", "mumbai", "Deployment: mumbai, polygon or local")
	cmd.Flags().BoolVar(&nonInteractive, "non-interactive", false, "Do not prompt")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	return cmd
}
