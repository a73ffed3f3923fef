// Package wallet provides the local account that connects to the social
// graph: an encrypted go-ethereum keystore that signs personal messages and
// EIP-712 typed data.
package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/lenspost/lenspost/internal/logging"
)

var (
	// ErrWalletUnavailable is returned when no account exists or it cannot be unlocked.
	ErrWalletUnavailable = errors.New("wallet unavailable")
	// ErrSignRejected is returned when a signature request cannot be honoured.
	ErrSignRejected = errors.New("signature rejected")
)

// Keystore encryption cost. Tests lower these.
var (
	scryptN = keystore.StandardScryptN
	scryptP = keystore.StandardScryptP
)

// Wallet holds at most one account, backed by a keystore directory or by an
// in-memory key.
type Wallet struct {
	mu       sync.Mutex
	ks       *keystore.KeyStore
	dir      string
	account  *accounts.Account
	password PasswordFunc
	key      *ecdsa.PrivateKey
}

func openKeystore(dir string) (*keystore.KeyStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create keystore directory: %w", err)
	}
	return keystore.NewKeyStore(dir, scryptN, scryptP), nil
}

// Open loads the wallet in dir. A directory without accounts yields a wallet
// whose RequestAccounts fails with ErrWalletUnavailable.
func Open(dir string, password PasswordFunc) (*Wallet, error) {
	ks, err := openKeystore(dir)
	if err != nil {
		return nil, err
	}

	w := &Wallet{ks: ks, dir: dir, password: password}
	if accs := ks.Accounts(); len(accs) > 0 {
		acc := accs[0]
		w.account = &acc
	}
	return w, nil
}

// Create generates a new account in dir. Fails if a wallet already exists.
func Create(dir, password string) (*Wallet, error) {
	ks, err := openKeystore(dir)
	if err != nil {
		return nil, err
	}
	if len(ks.Accounts()) > 0 {
		return nil, fmt.Errorf("wallet already exists in %s", dir)
	}

	acc, err := ks.NewAccount(password)
	if err != nil {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}

	logging.Info("wallet created", logging.Component("wallet"), logging.Address(acc.Address.Hex()))
	return &Wallet{ks: ks, dir: dir, account: &acc, password: Static(password)}, nil
}

// Import stores a hex private key as a new account in dir. Fails if a wallet already exists.
func Import(dir, privKeyHex, password string) (*Wallet, error) {
	ks, err := openKeystore(dir)
	if err != nil {
		return nil, err
	}
	if len(ks.Accounts()) > 0 {
		return nil, fmt.Errorf("wallet already exists in %s", dir)
	}

	privateKey, err := crypto.HexToECDSA(trimHexPrefix(privKeyHex))
	if err != nil {
		return nil, fmt.Errorf("invalid private key hex: %w", err)
	}

	acc, err := ks.ImportECDSA(privateKey, password)
	if err != nil {
		return nil, fmt.Errorf("failed to import key: %w", err)
	}

	logging.Info("wallet imported", logging.Component("wallet"), logging.Address(acc.Address.Hex()))
	return &Wallet{ks: ks, dir: dir, account: &acc, password: Static(password)}, nil
}

// FromKey returns an unlocked wallet over an in-memory key.
func FromKey(key *ecdsa.PrivateKey) *Wallet {
	acc := accounts.Account{Address: crypto.PubkeyToAddress(key.PublicKey)}
	return &Wallet{account: &acc, key: key}
}

// Address returns the account address, or the zero address if there is none.
func (w *Wallet) Address() common.Address {
	if w.account == nil {
		return common.Address{}
	}
	return w.account.Address
}

// KeystoreDir returns the keystore directory.
func (w *Wallet) KeystoreDir() string {
	return w.dir
}

// ListAccounts returns the held accounts without unlocking anything.
func (w *Wallet) ListAccounts(_ context.Context) []common.Address {
	if w.account == nil {
		return nil
	}
	return []common.Address{w.account.Address}
}

// RequestAccounts unlocks the wallet and returns its accounts. A missing
// account or a missing/wrong password yields ErrWalletUnavailable.
func (w *Wallet) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	if w.account == nil {
		return nil, fmt.Errorf("%w: no account in keystore", ErrWalletUnavailable)
	}
	if _, err := w.PrivateKey(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWalletUnavailable, err)
	}
	return []common.Address{w.account.Address}, nil
}

// PrivateKey decrypts and caches the account key.
func (w *Wallet) PrivateKey(ctx context.Context) (*ecdsa.PrivateKey, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.key != nil {
		return w.key, nil
	}
	if w.account == nil || w.ks == nil {
		return nil, errors.New("no account found")
	}
	if w.password == nil {
		return nil, errors.New("no password source configured")
	}

	password, err := w.password(ctx)
	if err != nil {
		return nil, err
	}

	keyJSON, err := os.ReadFile(w.account.URL.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	key, err := keystore.DecryptKey(keyJSON, password)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt key: %w", err)
	}

	w.key = key.PrivateKey
	return w.key, nil
}

// Lock zeros and drops the cached key. Keystore-less wallets cannot be locked.
func (w *Wallet) Lock() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.key != nil && w.ks != nil {
		w.key.D.SetUint64(0)
		w.key = nil
	}
}

// SignMessage produces an EIP-191 personal_sign signature over text with v in {27, 28}.
func (w *Wallet) SignMessage(ctx context.Context, address common.Address, text string) ([]byte, error) {
	return w.signHash(ctx, address, accounts.TextHash([]byte(text)))
}

// SignTypedData produces an EIP-712 signature over data with v in {27, 28}.
func (w *Wallet) SignTypedData(ctx context.Context, address common.Address, data apitypes.TypedData) ([]byte, error) {
	hash, _, err := apitypes.TypedDataAndHash(data)
	if err != nil {
		return nil, fmt.Errorf("failed to hash typed data: %w", err)
	}
	return w.signHash(ctx, address, hash)
}

func (w *Wallet) signHash(ctx context.Context, address common.Address, hash []byte) ([]byte, error) {
	if w.account == nil || w.account.Address != address {
		return nil, fmt.Errorf("%w: account %s not held", ErrSignRejected, address.Hex())
	}

	key, err := w.PrivateKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignRejected, err)
	}

	sig, err := crypto.Sign(hash, key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}

	// Ethereum convention
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
