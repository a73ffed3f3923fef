package doctor

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lenspost/lenspost/internal/config"
	"github.com/lenspost/lenspost/internal/lens"
	"github.com/lenspost/lenspost/pkg/types"
)

// AccountLister lists wallet accounts without unlocking them.
type AccountLister interface {
	ListAccounts(ctx context.Context) []common.Address
}

// ProfileLookup resolves the default profile of an address.
type ProfileLookup interface {
	DefaultProfile(ctx context.Context, address string) (types.Profile, error)
}

// VersionReporter reports the version of a remote API.
type VersionReporter interface {
	Version(ctx context.Context) (string, error)
}

// ChainDialer connects to an RPC endpoint and verifies its chain ID.
type ChainDialer interface {
	Connect(ctx context.Context) error
	ChainID() *big.Int
}

// ConfigChecker checks that the config file exists and is valid.
type ConfigChecker struct {
	path string
}

func NewConfigChecker(path string) *ConfigChecker {
	return &ConfigChecker{path: path}
}

func (c *ConfigChecker) Name() string       { return "Config file" }
func (c *ConfigChecker) Category() Category { return CategoryConfig }

func (c *ConfigChecker) Check(ctx context.Context) CheckResult {
	result := CheckResult{Name: c.Name(), Category: c.Category()}

	if _, err := os.Stat(c.path); os.IsNotExist(err) {
		result.Status = StatusWarning
		result.Message = "Config: not found, using defaults"
		result.Details = c.path
		result.FixCommand = "lenspost config init"
		return result
	}

	if _, err := config.Load(c.path); err != nil {
		result.Status = StatusError
		result.Message = "Config: invalid"
		result.Details = err.Error()
		result.FixCommand = "lenspost config init --force"
		return result
	}

	result.Status = StatusOK
	result.Message = "Config: " + c.path
	return result
}

// CredentialsChecker checks that IPFS credentials came from the environment.
type CredentialsChecker struct {
	projectID     string
	projectSecret string
}

func NewCredentialsChecker(projectID, projectSecret string) *CredentialsChecker {
	return &CredentialsChecker{projectID: projectID, projectSecret: projectSecret}
}

func (c *CredentialsChecker) Name() string       { return "IPFS credentials" }
func (c *CredentialsChecker) Category() Category { return CategoryConfig }

func (c *CredentialsChecker) Check(ctx context.Context) CheckResult {
	result := CheckResult{Name: c.Name(), Category: c.Category()}

	switch {
	case c.projectID != "" && c.projectSecret != "":
		result.Status = StatusOK
		result.Message = "IPFS credentials: set"
	case c.projectID != "" || c.projectSecret != "":
		result.Status = StatusError
		result.Message = "IPFS credentials: incomplete"
		result.Details = fmt.Sprintf("set both %s and %s", config.EnvIPFSProjectID, config.EnvIPFSProjectSecret)
	default:
		// A local node needs none.
		result.Status = StatusWarning
		result.Message = "IPFS credentials: not set"
		result.Details = fmt.Sprintf("hosted gateways need %s and %s (environment or .env)",
			config.EnvIPFSProjectID, config.EnvIPFSProjectSecret)
	}
	return result
}

// WalletChecker checks that the keystore holds an account.
type WalletChecker struct {
	wallet AccountLister
}

func NewWalletChecker(wallet AccountLister) *WalletChecker {
	return &WalletChecker{wallet: wallet}
}

func (c *WalletChecker) Name() string       { return "Wallet" }
func (c *WalletChecker) Category() Category { return CategoryWallet }

func (c *WalletChecker) Check(ctx context.Context) CheckResult {
	result := CheckResult{Name: c.Name(), Category: c.Category()}

	accounts := c.wallet.ListAccounts(ctx)
	if len(accounts) == 0 {
		result.Status = StatusError
		result.Message = "Wallet: not configured"
		result.Details = "a wallet signs the login challenge and every post"
		result.FixCommand = "lenspost wallet create"
		return result
	}

	result.Status = StatusOK
	result.Message = "Wallet: " + accounts[0].Hex()
	return result
}

// ProfileChecker checks that the API is reachable and the wallet has a
// default profile.
type ProfileChecker struct {
	api    ProfileLookup
	wallet AccountLister
}

func NewProfileChecker(api ProfileLookup, wallet AccountLister) *ProfileChecker {
	return &ProfileChecker{api: api, wallet: wallet}
}

func (c *ProfileChecker) Name() string       { return "Lens API" }
func (c *ProfileChecker) Category() Category { return CategoryNetwork }

func (c *ProfileChecker) Check(ctx context.Context) CheckResult {
	result := CheckResult{Name: c.Name(), Category: c.Category()}

	accounts := c.wallet.ListAccounts(ctx)
	if len(accounts) == 0 {
		result.Status = StatusSkipped
		result.Message = "Lens API: skipped, no wallet"
		return result
	}

	profile, err := c.api.DefaultProfile(ctx, accounts[0].Hex())
	switch {
	case errors.Is(err, lens.ErrProfileNotFound):
		result.Status = StatusWarning
		result.Message = "Lens API: reachable, no default profile"
		result.Details = "posting needs a profile owned by " + accounts[0].Hex()
	case err != nil:
		result.Status = StatusError
		result.Message = "Lens API: unreachable"
		result.Details = err.Error()
	default:
		result.Status = StatusOK
		result.Message = fmt.Sprintf("Lens API: profile @%s (%s)", profile.Handle, profile.ID)
	}
	return result
}

// IPFSChecker checks that the IPFS API answers.
type IPFSChecker struct {
	ipfs VersionReporter
	url  string
}

func NewIPFSChecker(ipfs VersionReporter, url string) *IPFSChecker {
	return &IPFSChecker{ipfs: ipfs, url: url}
}

func (c *IPFSChecker) Name() string       { return "IPFS API" }
func (c *IPFSChecker) Category() Category { return CategoryNetwork }

func (c *IPFSChecker) Check(ctx context.Context) CheckResult {
	result := CheckResult{Name: c.Name(), Category: c.Category()}

	version, err := c.ipfs.Version(ctx)
	if err != nil {
		result.Status = StatusError
		result.Message = "IPFS API: unreachable"
		result.Details = err.Error()
		return result
	}

	result.Status = StatusOK
	result.Message = fmt.Sprintf("IPFS API: %s (version %s)", c.url, version)
	return result
}

// RPCChecker checks that the RPC endpoint serves the configured chain.
type RPCChecker struct {
	chain ChainDialer
	url   string
}

func NewRPCChecker(chain ChainDialer, url string) *RPCChecker {
	return &RPCChecker{chain: chain, url: url}
}

func (c *RPCChecker) Name() string       { return "RPC endpoint" }
func (c *RPCChecker) Category() Category { return CategoryNetwork }

func (c *RPCChecker) Check(ctx context.Context) CheckResult {
	result := CheckResult{Name: c.Name(), Category: c.Category()}

	if err := c.chain.Connect(ctx); err != nil {
		result.Status = StatusError
		result.Message = "RPC: unreachable or wrong chain"
		result.Details = err.Error()
		return result
	}

	result.Status = StatusOK
	result.Message = fmt.Sprintf("RPC: %s (chain %s)", c.url, c.chain.ChainID())
	return result
}
