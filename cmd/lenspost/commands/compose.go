package commands

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

// maxPostLength matches the API's content limit.
const maxPostLength = 30000

// NewComposeCmd opens an interactive editor for a post.
func NewComposeCmd() *cobra.Command {
	var flags postFlags

	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Write a post in an interactive editor and publish it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !isTTY() {
				return errors.New("compose needs an interactive terminal; use 'lenspost post' instead")
			}

			var (
				text    string
				confirm = true
			)
			form := huh.NewForm(
				huh.NewGroup(
					huh.NewText().
						Title("What's happening?").
						CharLimit(maxPostLength).
						Validate(func(s string) error {
							if len(s) == 0 {
								return errors.New("write something first")
							}
							return nil
						}).
						Value(&text),
					huh.NewConfirm().
						Title("Publish now?").
						Affirmative("Publish").
						Negative("Discard").
						Value(&confirm),
				),
			).WithTheme(huh.ThemeBase())

			if err := form.Run(); err != nil {
				return fmt.Errorf("compose cancelled: %w", err)
			}
			if !confirm {
				Info("Draft discarded")
				return nil
			}
			return runPublish(cmd, text, flags)
		},
	}

	addPostFlags(cmd, &flags)
	return cmd
}
