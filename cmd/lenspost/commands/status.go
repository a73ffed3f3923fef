package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lenspost/lenspost/internal/session"
)

// NewStatusCmd shows the restored session without prompting.
func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show wallet, profile and session state",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(runtimeOptions{DryRun: true})
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx, cancel := commandContext(cmd)
			defer cancel()

			st, err := rt.app.Restore(ctx)
			if err != nil {
				Warning(err.Error())
			}

			fields := profileFields(st)
			fields = append(fields,
				[2]string{"Session", StateBadge(rt.app.HandshakeState().String())},
				[2]string{"Token", tokenExpiry(st.Session.AccessToken, time.Now())},
				[2]string{"Server", serverVerdict(ctx, rt.api, st.Session.AccessToken)},
				[2]string{"API", rt.cfg.Lens.APIURL},
				[2]string{"Chain", fmt.Sprintf("%d", rt.cfg.Chain.ChainID)},
				[2]string{"Keyring", rt.secrets.Backend()},
			)
			fmt.Println(StatusBox(Logo()+" status", fields))

			if !st.Connected() {
				fmt.Println(Hint("Create a wallet with 'lenspost wallet create', then run 'lenspost connect'."))
			} else if !st.Authenticated() {
				fmt.Println(Hint("Run 'lenspost login' to sign in."))
			}
			return nil
		},
	}
}

func tokenExpiry(token string, now time.Time) string {
	if token == "" {
		return "none"
	}
	exp, err := session.ExpiresAt(token)
	if err != nil {
		return "unknown expiry"
	}
	if !now.Before(exp) {
		return "expired"
	}
	return "expires in " + exp.Sub(now).Round(time.Second).String()
}

type tokenVerifier interface {
	Verify(ctx context.Context, accessToken string) (bool, error)
}

// serverVerdict asks the API whether it still accepts token.
func serverVerdict(ctx context.Context, v tokenVerifier, token string) string {
	if token == "" {
		return "not checked"
	}
	ok, err := v.Verify(ctx, token)
	switch {
	case err != nil:
		return "unreachable"
	case ok:
		return "token accepted"
	default:
		return "token rejected"
	}
}
