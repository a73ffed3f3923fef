package commands

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/lenspost/lenspost/internal/config"
	"github.com/lenspost/lenspost/internal/secrets"
	"github.com/lenspost/lenspost/internal/wallet"
)

const (
	minPasswordLength = 8
	maxPromptAttempts = 3
)

// NewWalletCmd creates the wallet command group
func NewWalletCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Manage the wallet used to sign in and sign posts",
		Long: `Manage the Ethereum wallet that signs the login challenge and the
PostWithSig typed data.

The wallet is an encrypted keystore file (geth V3 format). The password can
be kept in the platform keyring (Keychain, Secret Service, WinCred), the
Linux kernel keyring, the LENSPOST_WALLET_PASSWORD environment variable or
the file named by client.wallet_password_file.

Examples:
  lenspost wallet create
  lenspost wallet import
  lenspost wallet show
  lenspost wallet forget-password`,
	}

	cmd.AddCommand(newWalletCreateCmd())
	cmd.AddCommand(newWalletImportCmd())
	cmd.AddCommand(newWalletShowCmd())
	cmd.AddCommand(newWalletForgetPasswordCmd())
	return cmd
}

// storePassword keeps the password in the best available keyring.
func storePassword(cfg *config.Config, password string) {
	store := openSecrets(cfg)
	if store.Backend() != "memory" {
		if err := store.Set(wallet.PasswordKey, password, "Wallet password"); err == nil {
			fmt.Printf("  Password saved to %s\n", store.Backend())
			return
		}
	}

	if err := secrets.StoreKernel(wallet.KernelPasswordKey, password); err == nil {
		fmt.Println("  Password saved to kernel keyring (in-memory, lost on reboot)")
		return
	}

	fmt.Println("  Could not store the password in a keyring.")
	fmt.Println("  For automatic unlock set " + wallet.PasswordEnv + " or client.wallet_password_file.")
}

// promptNewPassword asks for a password twice.
func promptNewPassword() (string, error) {
	for attempt := 1; attempt <= maxPromptAttempts; attempt++ {
		password, err := readSecret("Enter wallet password: ")
		if err != nil {
			return "", err
		}
		if err := checkPassword(password); err != nil {
			Warning(fmt.Sprintf("Invalid input: %v. Try again.", err))
			continue
		}

		confirm, err := readSecret("Confirm wallet password: ")
		if err != nil {
			return "", err
		}
		if password != confirm {
			Warning("Passwords do not match. Try again.")
			continue
		}
		return password, nil
	}
	return "", errors.New("too many failed attempts")
}

func checkPassword(password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	return nil
}

// normalizePrivateKey strips 0x and checks the key is 32 bytes of hex.
func normalizePrivateKey(input string) (string, error) {
	key := strings.TrimPrefix(strings.TrimSpace(input), "0x")
	if len(key) != 64 {
		return "", fmt.Errorf("private key must be 64 hex characters (32 bytes), got %d", len(key))
	}
	for _, c := range key {
		if !strings.ContainsRune("0123456789abcdefABCDEF", c) {
			return "", errors.New("private key contains non-hex characters")
		}
	}
	return key, nil
}

func newWalletCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Create a new wallet",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			password, err := promptNewPassword()
			if err != nil {
				return err
			}

			w, err := wallet.Create(cfg.Client.KeystoreDir, password)
			if err != nil {
				return err
			}

			fmt.Println()
			Success("Wallet created")
			fmt.Println(StatusBox("Wallet", [][2]string{
				{"Address", w.Address().Hex()},
				{"Keystore", cfg.Client.KeystoreDir},
			}))
			storePassword(cfg, password)
			fmt.Println()
			Warning("Back up the keystore directory and remember the password.")
			fmt.Println(Hint("Next: lenspost connect"))
			return nil
		},
	}
}

func newWalletImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import",
		Short: "Import a wallet from a private key",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			var key string
			for attempt := 1; attempt <= maxPromptAttempts && key == ""; attempt++ {
				input, err := readSecret("Enter private key (hex, with or without 0x prefix): ")
				if err != nil {
					return err
				}
				if key, err = normalizePrivateKey(input); err != nil {
					Warning(fmt.Sprintf("Invalid input: %v. Try again.", err))
				}
			}
			if key == "" {
				return errors.New("too many failed attempts")
			}

			password, err := promptNewPassword()
			if err != nil {
				return err
			}

			w, err := wallet.Import(cfg.Client.KeystoreDir, key, password)
			if err != nil {
				return err
			}

			fmt.Println()
			Success("Wallet imported")
			fmt.Println(StatusBox("Wallet", [][2]string{
				{"Address", w.Address().Hex()},
				{"Keystore", cfg.Client.KeystoreDir},
			}))
			storePassword(cfg, password)
			return nil
		},
	}
}

func newWalletShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show wallet address and keystore path",
		Long:  "Display the wallet address and keystore directory. No password needed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			w, err := wallet.Open(cfg.Client.KeystoreDir, nil)
			if err != nil {
				return err
			}
			if len(w.ListAccounts(cmd.Context())) == 0 {
				Info("No wallet found.")
				fmt.Println(Hint("Create one with: lenspost wallet create"))
				return nil
			}

			pwStatus := "not stored (prompted when needed)"
			if _, err := wallet.Keyring(openSecrets(cfg))(cmd.Context()); err == nil {
				pwStatus = "stored in keyring"
			} else if _, err := wallet.KernelKeyring()(cmd.Context()); err == nil {
				pwStatus = "stored in kernel keyring"
			} else if os.Getenv(wallet.PasswordEnv) != "" {
				pwStatus = "from " + wallet.PasswordEnv
			}

			fmt.Println(StatusBox("Wallet", [][2]string{
				{"Address", w.Address().Hex()},
				{"Keystore", cfg.Client.KeystoreDir},
				{"Password", pwStatus},
			}))
			return nil
		},
	}
}

func newWalletForgetPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forget-password",
		Short: "Remove the wallet password from the keyrings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			removed := false
			store := openSecrets(cfg)
			if _, err := store.Get(wallet.PasswordKey); err == nil {
				if err := store.Remove(wallet.PasswordKey); err != nil {
					return err
				}
				fmt.Println("Removed password from " + store.Backend())
				removed = true
			}
			if err := secrets.DeleteKernel(wallet.KernelPasswordKey); err == nil {
				fmt.Println("Removed password from kernel keyring")
				removed = true
			}

			if !removed {
				fmt.Println("No stored password found in any keyring.")
			}
			return nil
		},
	}
}

// readSecret prompts on stderr and reads a line with echo disabled.
func readSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return string(b), nil
}
