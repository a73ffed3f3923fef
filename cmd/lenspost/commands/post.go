package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lenspost/lenspost/internal/auth"
	"github.com/lenspost/lenspost/internal/publish"
	"github.com/lenspost/lenspost/pkg/types"
)

type postFlags struct {
	file   string
	dryRun bool
	wait   bool
	login  bool
}

// NewPostCmd publishes a text post.
func NewPostCmd() *cobra.Command {
	var flags postFlags

	cmd := &cobra.Command{
		Use:   "post [text]",
		Short: "Publish a text post",
		Long: `Publish a text post from the arguments, a file (--file) or stdin ("-").

The post metadata is validated by the Lens API, uploaded to IPFS, turned into
PostWithSig typed data, signed by the wallet and submitted to LensHub.

Examples:
  lenspost post "gm lens"
  echo "hello world" | lenspost post -
  lenspost post --dry-run "test without a transaction"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readPostText(args, flags.file, cmd.InOrStdin())
			if err != nil {
				return err
			}
			return runPublish(cmd, text, flags)
		},
	}

	addPostFlags(cmd, &flags)
	cmd.Flags().StringVarP(&flags.file, "file", "f", "", "Read the post text from a file")
	return cmd
}

func addPostFlags(cmd *cobra.Command, flags *postFlags) {
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Run every step but record the LensHub call instead of sending it")
	cmd.Flags().BoolVar(&flags.wait, "wait", false, "Wait for the transaction receipt")
	cmd.Flags().BoolVar(&flags.login, "login", false, "Sign in first when there is no valid session")
}

// readPostText picks the text from a file, stdin ("-") or the arguments.
func readPostText(args []string, file string, stdin io.Reader) (string, error) {
	switch {
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read post file: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	case len(args) == 1 && args[0] == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	default:
		return strings.TrimSpace(strings.Join(args, " ")), nil
	}
}

func runPublish(cmd *cobra.Command, text string, flags postFlags) error {
	if (types.Draft{Text: text}).Empty() {
		return publish.ErrNoDraft
	}

	rt, err := setup(runtimeOptions{DryRun: flags.dryRun, Wait: flags.wait})
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := commandContext(cmd)
	defer cancel()

	st, err := rt.app.Restore(ctx)
	if err != nil {
		return err
	}
	if !st.Authenticated() && flags.login {
		if err := signIn(ctx, rt); err != nil {
			return err
		}
	}

	rt.app.SetDraft(text)

	run := WithSpinner
	if rt.app.State().Authenticated() {
		run = func(msg string, fn func() error) error {
			return withUnlockedSpinner(ctx, rt.wallet, msg, fn)
		}
	}

	var result types.PublishResult
	err = run("Publishing", func() error {
		result, err = rt.app.Publish(ctx)
		return err
	})
	if err != nil {
		return err
	}

	if flags.dryRun {
		Success("Dry run complete, no transaction sent")
	} else {
		Success("Post submitted")
	}
	fmt.Println(StatusBox("Post", [][2]string{
		{"Profile", "@" + rt.app.State().Profile.Handle},
		{"Metadata", result.MetadataID},
		{"Content", result.ContentURI},
		{"Tx", result.TxHash},
	}))
	return nil
}

func signIn(ctx context.Context, rt *clientRuntime) error {
	return withUnlockedSpinner(ctx, rt.wallet, "Signing in", func() error {
		if rt.app.HandshakeState() == auth.Disconnected {
			if _, err := rt.app.Connect(ctx); err != nil {
				return err
			}
		}
		_, err := rt.app.Login(ctx)
		return err
	})
}
