package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh/spinner"
	"github.com/ethereum/go-ethereum/common"

	"github.com/lenspost/lenspost/internal/app"
)

// StatusBox renders a titled box with key-value fields.
//
//	StatusBox("Wallet", [][2]string{{"Address", "0xabc..."}, {"Profile", "@alice"}})
func StatusBox(title string, fields [][2]string) string {
	if !isTTY() {
		return statusBoxPlain(title, fields)
	}

	var sb strings.Builder
	sb.WriteString(StyleHeader.Render(title))
	sb.WriteString("\n")
	for _, f := range fields {
		sb.WriteString(StyleLabel.Render(f[0]) + StyleValue.Render(f[1]) + "\n")
	}
	return StyleBox.Render(strings.TrimRight(sb.String(), "\n"))
}

func statusBoxPlain(title string, fields [][2]string) string {
	var sb strings.Builder
	sb.WriteString(title + "\n")
	sb.WriteString(strings.Repeat("=", len(title)) + "\n")
	for _, f := range fields {
		sb.WriteString(fmt.Sprintf("%-14s %s\n", f[0]+":", f[1]))
	}
	return sb.String()
}

// Success prints a success message.
func Success(msg string) {
	if isTTY() {
		fmt.Println(StyleSuccess.Render("  " + msg))
	} else {
		fmt.Println("[OK] " + msg)
	}
}

// Warning prints a warning message.
func Warning(msg string) {
	if isTTY() {
		fmt.Println(StyleWarning.Render("  " + msg))
	} else {
		fmt.Println("[WARN] " + msg)
	}
}

// Info prints an informational message.
func Info(msg string) {
	if isTTY() {
		fmt.Println(StyleInfo.Render("  " + msg))
	} else {
		fmt.Println("[INFO] " + msg)
	}
}

// Hint renders a dimmed follow-up line.
func Hint(msg string) string {
	if !isTTY() {
		return "  " + msg
	}
	return "  " + StyleDim.Render(msg)
}

// PrintError shows what went wrong and what to do about it on stderr.
func PrintError(err error) {
	if err == nil {
		return
	}
	advice := app.Explain(err)
	detail := err.Error()

	if !isTTY() {
		fmt.Fprintln(os.Stderr, "[ERROR] "+advice)
		if detail != advice {
			fmt.Fprintln(os.Stderr, "        "+detail)
		}
		return
	}

	body := StyleError.Render(advice)
	if detail != advice && !strings.Contains(advice, detail) {
		body += "\n" + StyleDim.Render(detail)
	}
	fmt.Fprintln(os.Stderr, StyleBoxError.Render(body))
}

type accountUnlocker interface {
	RequestAccounts(ctx context.Context) ([]common.Address, error)
}

// withUnlockedSpinner unlocks the wallet first so a password prompt never
// shares the terminal with the spinner.
func withUnlockedSpinner(ctx context.Context, u accountUnlocker, msg string, fn func() error) error {
	if _, err := u.RequestAccounts(ctx); err != nil {
		return err
	}
	return WithSpinner(msg, fn)
}

// WithSpinner runs fn while showing a spinner with the given message.
func WithSpinner(msg string, fn func() error) error {
	if !isTTY() {
		fmt.Printf("%s...\n", msg)
		return fn()
	}

	var fnErr error
	err := spinner.New().
		Title(msg).
		Action(func() {
			fnErr = fn()
		}).
		Run()
	if err != nil {
		return err
	}
	return fnErr
}

// shortAddress abbreviates a hex address as 0x1234…abcd.
func shortAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-4:]
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
