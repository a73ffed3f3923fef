package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lenspost/lenspost/internal/session"
)

// NewConnectCmd unlocks the wallet and looks up its Lens profile.
func NewConnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "connect",
		Short: "Connect the wallet and resolve its Lens profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(runtimeOptions{DryRun: true})
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx, cancel := commandContext(cmd)
			defer cancel()

			var st session.State
			err = withUnlockedSpinner(ctx, rt.wallet, "Connecting wallet", func() error {
				st, err = rt.app.Connect(ctx)
				return err
			})
			if err != nil {
				return err
			}

			Success("Wallet connected")
			fmt.Println(StatusBox("Wallet", profileFields(st)))
			if st.ProfileMissing {
				Warning("This address has no default Lens profile; posting is not possible.")
			}
			return nil
		},
	}
}

func profileFields(st session.State) [][2]string {
	profile := "none"
	if st.Profile.ID != "" {
		profile = fmt.Sprintf("@%s (%s)", st.Profile.Handle, st.Profile.ID)
	}
	return [][2]string{
		{"Address", orNone(st.Address)},
		{"Profile", profile},
	}
}
