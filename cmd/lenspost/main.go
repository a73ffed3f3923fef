package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/lenspost/lenspost/cmd/lenspost/commands"
)

var rootCmd = &cobra.Command{
	Use:   "lenspost",
	Short: "Post to Lens from the terminal",
	Long: `Connect a wallet, sign in to the Lens API with a wallet signature and
publish text posts: metadata goes to IPFS, the post is signed as EIP-712
typed data and submitted to the LensHub contract.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	commands.AddGlobalFlags(rootCmd)
}

func main() {
	rootCmd.AddCommand(commands.NewConnectCmd())
	rootCmd.AddCommand(commands.NewLoginCmd())
	rootCmd.AddCommand(commands.NewStatusCmd())
	rootCmd.AddCommand(commands.NewPostCmd())
	rootCmd.AddCommand(commands.NewComposeCmd())
	rootCmd.AddCommand(commands.NewLogoutCmd())
	rootCmd.AddCommand(commands.NewWalletCmd())
	rootCmd.AddCommand(commands.NewConfigCmd())
	rootCmd.AddCommand(commands.NewDoctorCmd())
	rootCmd.AddCommand(commands.NewDevAPICmd())
	rootCmd.AddCommand(commands.NewVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		commands.PrintError(err)
		os.Exit(1)
	}
}
