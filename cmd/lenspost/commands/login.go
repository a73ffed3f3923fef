package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lenspost/lenspost/internal/session"
)

// NewLoginCmd runs the challenge/signature handshake.
func NewLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in to the Lens API with a wallet signature",
		Long: `Request a challenge from the Lens API, sign it with the wallet and
exchange the signature for access and refresh tokens. The tokens are stored
in the system keyring and reused by later commands.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(runtimeOptions{DryRun: true})
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx, cancel := commandContext(cmd)
			defer cancel()

			if _, err := rt.app.Restore(ctx); err != nil {
				Warning(err.Error())
			}

			var st session.State
			err = withUnlockedSpinner(ctx, rt.wallet, "Signing in", func() error {
				st, err = rt.app.ConnectAndLogin(ctx)
				return err
			})
			if err != nil {
				return err
			}

			Success("Signed in")
			fields := append(profileFields(st), [2]string{"Session", StateBadge(rt.app.HandshakeState().String())})
			if exp, err := session.ExpiresAt(st.Session.AccessToken); err == nil {
				fields = append(fields, [2]string{"Expires", exp.Local().Format("2006-01-02 15:04")})
			}
			fmt.Println(StatusBox("Lens", fields))
			return nil
		},
	}
}
