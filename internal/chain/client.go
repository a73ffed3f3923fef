// Package chain submits signed publications to the LensHub contract.
package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/lenspost/lenspost/internal/logging"
	"github.com/lenspost/lenspost/internal/util"
)

// ErrNotConnected is returned when the RPC client has not been dialled.
var ErrNotConnected = errors.New("not connected to RPC endpoint")

// ClientConfig holds configuration for the EVM RPC client.
type ClientConfig struct {
	RPCURL             string
	ChainID            int64
	GasLimitMultiplier float64 // applied to estimated gas (default: 1.2)
	MaxGasPrice        *big.Int
	RetryConfig        *util.RetryConfig
}

// DefaultClientConfig returns settings for the Polygon Mumbai testnet.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		RPCURL:             "https://rpc-mumbai.maticvigil.com",
		ChainID:            80001,
		GasLimitMultiplier: 1.2,
		MaxGasPrice:        big.NewInt(500e9), // 500 gwei
		RetryConfig:        util.DefaultRetryConfig(),
	}
}

// Client is a lazily connected EVM JSON-RPC client.
type Client struct {
	config  *ClientConfig
	client  *ethclient.Client
	chainID *big.Int

	mu        sync.RWMutex
	connected bool
}

// NewClient creates an unconnected client.
func NewClient(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultClientConfig()
	}
	return &Client{
		config:  config,
		chainID: big.NewInt(config.ChainID),
	}
}

// Connect dials the RPC endpoint and verifies the chain ID.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}

	client, result := util.RetryWithValue(ctx, c.config.RetryConfig, func() (*ethclient.Client, error) {
		return ethclient.DialContext(ctx, c.config.RPCURL)
	})
	if result.LastError != nil {
		return fmt.Errorf("failed to connect to RPC: %w", result.LastError)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return fmt.Errorf("failed to get chain ID: %w", err)
	}
	if chainID.Cmp(c.chainID) != 0 {
		client.Close()
		return fmt.Errorf("chain ID mismatch: expected %d, got %d", c.chainID, chainID)
	}

	c.client = client
	c.connected = true
	logging.Debug("rpc connected", logging.Component("chain"), "chain_id", chainID.String())
	return nil
}

// Close closes the connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		c.client.Close()
		c.client = nil
	}
	c.connected = false
}

// IsConnected returns true once Connect succeeded.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// ChainID returns the configured chain ID.
func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

func (c *Client) backend() (*ethclient.Client, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.client == nil {
		return nil, ErrNotConnected
	}
	return c.client, nil
}

// TransactOpts builds signing options for key with a capped gas price.
func (c *Client) TransactOpts(ctx context.Context, key *ecdsa.PrivateKey) (*bind.TransactOpts, error) {
	if key == nil {
		return nil, errors.New("no private key configured")
	}

	client, err := c.backend()
	if err != nil {
		return nil, err
	}

	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}
	if c.config.MaxGasPrice != nil && gasPrice.Cmp(c.config.MaxGasPrice) > 0 {
		gasPrice = new(big.Int).Set(c.config.MaxGasPrice)
	}

	opts, err := bind.NewKeyedTransactorWithChainID(key, c.chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}
	opts.Context = ctx
	opts.GasPrice = gasPrice
	return opts, nil
}

// WaitMined waits for tx to be mined and fails if it reverted.
func (c *Client) WaitMined(ctx context.Context, tx *gethtypes.Transaction) (*gethtypes.Receipt, error) {
	client, err := c.backend()
	if err != nil {
		return nil, err
	}

	receipt, err := bind.WaitMined(ctx, client, tx)
	if err != nil {
		return nil, fmt.Errorf("failed waiting for transaction: %w", err)
	}
	if receipt.Status == gethtypes.ReceiptStatusFailed {
		return receipt, fmt.Errorf("transaction reverted: %s", tx.Hash().Hex())
	}
	return receipt, nil
}

// EstimateGas estimates gas for msg and applies the configured multiplier.
func (c *Client) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	client, err := c.backend()
	if err != nil {
		return 0, err
	}

	gas, err := client.EstimateGas(ctx, msg)
	if err != nil {
		return 0, fmt.Errorf("failed to estimate gas: %w", err)
	}

	multiplier := c.config.GasLimitMultiplier
	if multiplier <= 0 {
		multiplier = 1.2
	}
	return uint64(float64(gas) * multiplier), nil
}
