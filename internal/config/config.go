package config

import (
	"fmt"
	"math/big"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/lenspost/lenspost/internal/chain"
	"github.com/lenspost/lenspost/internal/logging"
	"github.com/lenspost/lenspost/internal/secrets"
	"github.com/lenspost/lenspost/internal/storage"
	"github.com/lenspost/lenspost/internal/util"
)

// Environment variables read by Load. Storage credentials are only ever
// taken from the environment (or a .env file), never from config.yaml.
const (
	EnvDataDir           = "LENSPOST_DATA_DIR"
	EnvAPIURL            = "LENSPOST_API_URL"
	EnvIPFSAPI           = "LENSPOST_IPFS_API"
	EnvRPCURL            = "LENSPOST_RPC_URL"
	EnvIPFSProjectID     = "LENSPOST_IPFS_PROJECT_ID"
	EnvIPFSProjectSecret = "LENSPOST_IPFS_PROJECT_SECRET"
)

// Config represents the complete client configuration
type Config struct {
	Client ClientConfig `yaml:"client"`
	Lens   LensConfig   `yaml:"lens"`
	IPFS   IPFSConfig   `yaml:"ipfs"`
	Chain  ChainConfig  `yaml:"chain"`
	Post   PostConfig   `yaml:"post"`
	DevAPI DevAPIConfig `yaml:"dev_api"`
}

// ClientConfig contains local settings
type ClientConfig struct {
	DataDir            string `yaml:"data_dir"`
	KeystoreDir        string `yaml:"keystore_dir"`
	WalletPasswordFile string `yaml:"wallet_password_file"` // Path to file containing wallet password
	KeyringBackend     string `yaml:"keyring_backend"`      // "auto" or "file"
	LogLevel           string `yaml:"log_level"`
	LogFormat          string `yaml:"log_format"` // "json" or "text"
}

// LensConfig contains social-graph API settings
type LensConfig struct {
	APIURL      string `yaml:"api_url"`
	AppURL      string `yaml:"app_url"` // Base of the external_url written into post metadata
	Locale      string `yaml:"locale"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries"` // Retries for idempotent queries (profile lookup)
}

// IPFSConfig contains metadata storage settings
type IPFSConfig struct {
	APIAddr     string `yaml:"api_addr"` // URL or multiaddr of the IPFS HTTP API
	Pin         bool   `yaml:"pin"`
	TimeoutSecs int    `yaml:"timeout_secs"`

	// Credentials, from the environment only
	ProjectID     string `yaml:"-"`
	ProjectSecret string `yaml:"-"`
}

// ChainConfig contains EVM settings for LensHub submissions
type ChainConfig struct {
	RPCURL             string  `yaml:"rpc_url"`
	ChainID            int64   `yaml:"chain_id"`
	LensHubAddress     string  `yaml:"lens_hub_address"`
	MaxGasPriceGwei    int64   `yaml:"max_gas_price_gwei"`
	GasLimitMultiplier float64 `yaml:"gas_limit_multiplier"`
	WaitForReceipt     bool    `yaml:"wait_for_receipt"`
}

// PostConfig contains the modules attached to new posts
type PostConfig struct {
	FollowerOnlyCollect   bool `yaml:"follower_only_collect"`
	FollowerOnlyReference bool `yaml:"follower_only_reference"`
}

// DevAPIConfig contains settings of the local development API
type DevAPIConfig struct {
	ListenAddr string  `yaml:"listen_addr"`
	RateLimit  float64 `yaml:"rate_limit"` // Requests per second
	RateBurst  int     `yaml:"rate_burst"`
}

// DefaultConfig returns the default configuration (Polygon Mumbai)
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".lenspost")

	return &Config{
		Client: ClientConfig{
			DataDir:        dataDir,
			KeystoreDir:    filepath.Join(dataDir, "keystore"),
			KeyringBackend: secrets.BackendAuto,
			LogLevel:       "warn",
			LogFormat:      "text",
		},
		Lens: LensConfig{
			APIURL:      "https://api-mumbai.lens.dev",
			AppURL:      "https://lenster.xyz",
			Locale:      "en-US",
			TimeoutSecs: 30,
			MaxRetries:  3,
		},
		IPFS: IPFSConfig{
			APIAddr:     "https://ipfs.infura.io:5001",
			Pin:         true,
			TimeoutSecs: 60,
		},
		Chain: ChainConfig{
			RPCURL:             "https://rpc-mumbai.maticvigil.com",
			ChainID:            80001,
			LensHubAddress:     "0x60Ae865ee4C725cd04353b5AAb364553f56ceF82",
			MaxGasPriceGwei:    500,
			GasLimitMultiplier: 1.2,
		},
		Post: PostConfig{
			FollowerOnlyCollect:   true,
			FollowerOnlyReference: false,
		},
		DevAPI: DevAPIConfig{
			ListenAddr: "127.0.0.1:3999",
			RateLimit:  50,
			RateBurst:  100,
		},
	}
}

// LoadEnv reads .env files into the environment. Variables already set win.
// Missing files are skipped.
func LoadEnv(paths ...string) error {
	for _, p := range paths {
		p = expandPath(p)
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
		logging.Debug("loaded environment file", logging.Component("config"), "path", p)
	}
	return nil
}

// Load loads configuration from file and applies environment overrides
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	path = expandPath(path)

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.expandPaths()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvAPIURL); v != "" {
		c.Lens.APIURL = v
	}
	if v := os.Getenv(EnvIPFSAPI); v != "" {
		c.IPFS.APIAddr = v
	}
	if v := os.Getenv(EnvRPCURL); v != "" {
		c.Chain.RPCURL = v
	}
	c.IPFS.ProjectID = os.Getenv(EnvIPFSProjectID)
	c.IPFS.ProjectSecret = os.Getenv(EnvIPFSProjectSecret)
}

// Save saves configuration to file. Credentials are never written.
func (c *Config) Save(path string) error {
	path = expandPath(path)

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch strings.ToLower(c.Client.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log_level: %s", c.Client.LogLevel)
	}
	if c.Client.LogFormat != "json" && c.Client.LogFormat != "text" {
		return fmt.Errorf("invalid log_format: %s", c.Client.LogFormat)
	}
	if c.Client.KeyringBackend != secrets.BackendAuto && c.Client.KeyringBackend != secrets.BackendFile {
		return fmt.Errorf("invalid keyring_backend: %s", c.Client.KeyringBackend)
	}

	if err := validateURL("lens.api_url", c.Lens.APIURL, "http", "https"); err != nil {
		return err
	}
	if err := validateURL("lens.app_url", c.Lens.AppURL, "http", "https"); err != nil {
		return err
	}
	if c.Lens.TimeoutSecs < 1 {
		return fmt.Errorf("lens.timeout_secs must be at least 1")
	}
	if c.Lens.MaxRetries < 0 || c.Lens.MaxRetries > 10 {
		return fmt.Errorf("lens.max_retries must be between 0 and 10, got %d", c.Lens.MaxRetries)
	}

	if _, err := storage.NormalizeAPIAddr(c.IPFS.APIAddr); err != nil {
		return fmt.Errorf("invalid ipfs.api_addr: %w", err)
	}
	if c.IPFS.TimeoutSecs < 1 {
		return fmt.Errorf("ipfs.timeout_secs must be at least 1")
	}
	if (c.IPFS.ProjectID == "") != (c.IPFS.ProjectSecret == "") {
		return fmt.Errorf("%s and %s must be set together", EnvIPFSProjectID, EnvIPFSProjectSecret)
	}

	if err := validateURL("chain.rpc_url", c.Chain.RPCURL, "http", "https", "ws", "wss"); err != nil {
		return err
	}
	if c.Chain.ChainID < 1 {
		return fmt.Errorf("invalid chain.chain_id: %d", c.Chain.ChainID)
	}
	if err := validateEthAddress("chain.lens_hub_address", c.Chain.LensHubAddress); err != nil {
		return err
	}
	if c.Chain.MaxGasPriceGwei < 1 {
		return fmt.Errorf("chain.max_gas_price_gwei must be at least 1")
	}
	if c.Chain.GasLimitMultiplier < 1 || c.Chain.GasLimitMultiplier > 5 {
		return fmt.Errorf("chain.gas_limit_multiplier must be between 1 and 5, got %g", c.Chain.GasLimitMultiplier)
	}

	if c.DevAPI.RateLimit < 0 {
		return fmt.Errorf("dev_api.rate_limit must not be negative")
	}

	return nil
}

func validateURL(name, raw string, schemes ...string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", name)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	for _, s := range schemes {
		if u.Scheme == s && u.Host != "" {
			return nil
		}
	}
	return fmt.Errorf("%s must be an absolute %s URL, got %q", name, strings.Join(schemes, "/"), raw)
}

// validateEthAddress checks that an Ethereum address is 0x-prefixed, 40 hex chars, and non-zero.
func validateEthAddress(name, addr string) error {
	if addr == "" {
		return fmt.Errorf("%s is required", name)
	}
	if !strings.HasPrefix(addr, "0x") && !strings.HasPrefix(addr, "0X") {
		return fmt.Errorf("%s must start with 0x, got %q", name, addr)
	}
	if !common.IsHexAddress(addr) {
		return fmt.Errorf("%s must be 42 characters of hex, got %q", name, addr)
	}
	if common.HexToAddress(addr) == (common.Address{}) {
		return fmt.Errorf("%s must not be the zero address", name)
	}
	return nil
}

// expandPaths expands ~ in all path fields
func (c *Config) expandPaths() {
	c.Client.DataDir = expandPath(c.Client.DataDir)
	c.Client.KeystoreDir = expandPath(c.Client.KeystoreDir)
	c.Client.WalletPasswordFile = expandPath(c.Client.WalletPasswordFile)
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

// DefaultConfigPath returns the default config file path. LENSPOST_DATA_DIR
// moves the whole data directory.
func DefaultConfigPath() string {
	if dir := os.Getenv(EnvDataDir); dir != "" {
		return filepath.Join(dir, "config.yaml")
	}
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".lenspost", "config.yaml")
}

// EnsureDirectories creates the data and keystore directories
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Client.DataDir, c.Client.KeystoreDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// TokenFile is where the file keyring backend keeps session tokens.
func (c *Config) TokenFile() string {
	return filepath.Join(c.Client.DataDir, "keyring")
}

// LensTimeout returns the API request timeout.
func (c *Config) LensTimeout() time.Duration {
	return time.Duration(c.Lens.TimeoutSecs) * time.Second
}

// LensRetry returns the backoff for idempotent API queries.
func (c *Config) LensRetry() *util.RetryConfig {
	r := util.DefaultRetryConfig()
	r.MaxRetries = c.Lens.MaxRetries
	return r
}

// StorageConfig converts the ipfs section for the storage client.
func (c *Config) StorageConfig() storage.Config {
	return storage.Config{
		APIAddr:       c.IPFS.APIAddr,
		ProjectID:     c.IPFS.ProjectID,
		ProjectSecret: c.IPFS.ProjectSecret,
		Pin:           c.IPFS.Pin,
		Timeout:       time.Duration(c.IPFS.TimeoutSecs) * time.Second,
	}
}

// ChainClientConfig converts the chain section for the RPC client.
func (c *Config) ChainClientConfig() *chain.ClientConfig {
	cc := chain.DefaultClientConfig()
	cc.RPCURL = c.Chain.RPCURL
	cc.ChainID = c.Chain.ChainID
	cc.GasLimitMultiplier = c.Chain.GasLimitMultiplier
	cc.MaxGasPrice = new(big.Int).Mul(big.NewInt(c.Chain.MaxGasPriceGwei), big.NewInt(1e9))
	return cc
}

// LensHub returns the configured contract address.
func (c *Config) LensHub() common.Address {
	return common.HexToAddress(c.Chain.LensHubAddress)
}
