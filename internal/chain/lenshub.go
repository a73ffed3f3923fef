package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/lenspost/lenspost/internal/logging"
)

var (
	// ErrSubmission is returned when postWithSig cannot be submitted.
	ErrSubmission = errors.New("transaction submission failed")
	// ErrPubCountUnchanged is returned when a confirmed post did not raise the
	// profile's publication count.
	ErrPubCountUnchanged = errors.New("publication count did not increase")
)

// KeyFunc returns the key that pays for the transaction.
type KeyFunc func(ctx context.Context) (*ecdsa.PrivateKey, error)

// LensHubOptions configures a LensHub binding.
type LensHubOptions struct {
	// WaitForReceipt blocks PostWithSig until the transaction is mined and
	// checks that the profile's publication count went up.
	WaitForReceipt bool
}

// LensHub is a binding to the LensHub contract. Without a client it runs in
// mock mode and records submissions in memory.
type LensHub struct {
	client       *Client
	contractABI  abi.ABI
	contractAddr common.Address
	key          KeyFunc
	opts         LensHubOptions
	mockMode     bool

	mockMu        sync.Mutex
	mockSubmitted []PostWithSigData
}

func parseLensHubABI() (abi.ABI, error) {
	parsed, err := abi.JSON(strings.NewReader(LensHubABI))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse LensHub ABI: %w", err)
	}
	return parsed, nil
}

// NewLensHub binds the contract at addr on client.
func NewLensHub(client *Client, addr common.Address, key KeyFunc, opts LensHubOptions) (*LensHub, error) {
	parsed, err := parseLensHubABI()
	if err != nil {
		return nil, err
	}

	return &LensHub{
		client:       client,
		contractABI:  parsed,
		contractAddr: addr,
		key:          key,
		opts:         opts,
		mockMode:     client == nil,
	}, nil
}

// NewMockLensHub returns a binding that never touches the network.
func NewMockLensHub(addr common.Address, opts LensHubOptions) *LensHub {
	parsed, err := parseLensHubABI()
	if err != nil {
		panic(err)
	}
	return &LensHub{
		contractABI:  parsed,
		contractAddr: addr,
		opts:         opts,
		mockMode:     true,
	}
}

// IsMockMode returns whether running in mock mode.
func (l *LensHub) IsMockMode() bool {
	return l.mockMode
}

// Address returns the contract address.
func (l *LensHub) Address() common.Address {
	return l.contractAddr
}

// PackPostWithSig returns the calldata of postWithSig(data).
func (l *LensHub) PackPostWithSig(data PostWithSigData) ([]byte, error) {
	input, err := l.contractABI.Pack("postWithSig", data)
	if err != nil {
		return nil, fmt.Errorf("failed to pack postWithSig: %w", err)
	}
	return input, nil
}

func (l *LensHub) bound(ctx context.Context) (*bind.BoundContract, error) {
	if err := l.client.Connect(ctx); err != nil {
		return nil, err
	}
	backend, err := l.client.backend()
	if err != nil {
		return nil, err
	}
	return bind.NewBoundContract(l.contractAddr, l.contractABI, backend, backend, backend), nil
}

// PostWithSig submits a signed post and returns the transaction hash. It does
// not wait for confirmation unless WaitForReceipt is set.
func (l *LensHub) PostWithSig(ctx context.Context, data PostWithSigData) (common.Hash, error) {
	input, err := l.PackPostWithSig(data)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %v", ErrSubmission, err)
	}

	var before *big.Int
	if l.opts.WaitForReceipt {
		if before, err = l.PubCount(ctx, data.ProfileId); err != nil {
			return common.Hash{}, fmt.Errorf("%w: %v", ErrSubmission, err)
		}
	}

	if l.mockMode {
		l.mockMu.Lock()
		l.mockSubmitted = append(l.mockSubmitted, data)
		n := len(l.mockSubmitted)
		l.mockMu.Unlock()

		hash := crypto.Keccak256Hash(input, big.NewInt(int64(n)).Bytes())
		logging.Debug("mock postWithSig", logging.Component("chain"), "tx_hash", hash.Hex())
		if l.opts.WaitForReceipt {
			return hash, l.confirmPubCount(ctx, data.ProfileId, before)
		}
		return hash, nil
	}

	contract, err := l.bound(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %v", ErrSubmission, err)
	}

	if l.key == nil {
		return common.Hash{}, fmt.Errorf("%w: no signing key", ErrSubmission)
	}
	key, err := l.key(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %v", ErrSubmission, err)
	}

	opts, err := l.client.TransactOpts(ctx, key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %v", ErrSubmission, err)
	}

	gas, err := l.client.EstimateGas(ctx, ethereum.CallMsg{
		From:     opts.From,
		To:       &l.contractAddr,
		GasPrice: opts.GasPrice,
		Data:     input,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %v", ErrSubmission, err)
	}
	opts.GasLimit = gas

	tx, err := contract.Transact(opts, "postWithSig", data)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %v", ErrSubmission, err)
	}

	logging.Info("postWithSig submitted",
		logging.Component("chain"),
		"tx_hash", tx.Hash().Hex(),
		"gas", gas,
	)

	if l.opts.WaitForReceipt {
		receipt, err := l.client.WaitMined(ctx, tx)
		if err != nil {
			return tx.Hash(), fmt.Errorf("%w: %v", ErrSubmission, err)
		}
		logging.Info("postWithSig mined",
			logging.Component("chain"),
			"tx_hash", tx.Hash().Hex(),
			"block", receipt.BlockNumber.String(),
		)
		if err := l.confirmPubCount(ctx, data.ProfileId, before); err != nil {
			return tx.Hash(), err
		}
	}

	return tx.Hash(), nil
}

func (l *LensHub) confirmPubCount(ctx context.Context, profileID, before *big.Int) error {
	after, err := l.PubCount(ctx, profileID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSubmission, err)
	}
	if err := checkPubCount(before, after); err != nil {
		return err
	}
	logging.Debug("publication count confirmed",
		logging.Component("chain"),
		"profile_id", profileID.String(),
		"count", after.String(),
	)
	return nil
}

func checkPubCount(before, after *big.Int) error {
	if after.Cmp(before) <= 0 {
		return fmt.Errorf("%w: %s -> %s", ErrPubCountUnchanged, before, after)
	}
	return nil
}

// PubCount returns the number of publications of profileID.
func (l *LensHub) PubCount(ctx context.Context, profileID *big.Int) (*big.Int, error) {
	if l.mockMode {
		l.mockMu.Lock()
		defer l.mockMu.Unlock()
		count := int64(0)
		for _, s := range l.mockSubmitted {
			if s.ProfileId.Cmp(profileID) == 0 {
				count++
			}
		}
		return big.NewInt(count), nil
	}
	return l.callUint(ctx, "getPubCount", profileID)
}

func (l *LensHub) callUint(ctx context.Context, method string, args ...interface{}) (*big.Int, error) {
	contract, err := l.bound(ctx)
	if err != nil {
		return nil, err
	}

	var result []interface{}
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &result, method, args...); err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", method, err)
	}
	if len(result) == 0 {
		return big.NewInt(0), nil
	}
	if v, ok := result[0].(*big.Int); ok {
		return v, nil
	}
	return nil, fmt.Errorf("unexpected %s result type %T", method, result[0])
}

// Submitted returns the posts recorded in mock mode.
func (l *LensHub) Submitted() []PostWithSigData {
	l.mockMu.Lock()
	defer l.mockMu.Unlock()
	out := make([]PostWithSigData, len(l.mockSubmitted))
	copy(out, l.mockSubmitted)
	return out
}
