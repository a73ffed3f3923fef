package commands

import (
	"github.com/spf13/cobra"
)

// NewLogoutCmd forgets the stored session.
func NewLogoutCmd() *cobra.Command {
	var disconnect bool

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored Lens session",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(runtimeOptions{DryRun: true})
			if err != nil {
				return err
			}
			defer rt.Close()

			if disconnect {
				if err := rt.app.Disconnect(); err != nil {
					return err
				}
				Success("Disconnected and signed out")
				return nil
			}
			if err := rt.app.Logout(); err != nil {
				return err
			}
			Success("Signed out")
			return nil
		},
	}

	cmd.Flags().BoolVar(&disconnect, "disconnect", false, "Also forget the connected wallet")
	return cmd
}
