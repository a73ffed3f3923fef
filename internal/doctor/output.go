package doctor

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

var (
	styleTitle = lipgloss.NewStyle().Bold(true)
	styleOK    = lipgloss.NewStyle().Foreground(lipgloss.Color("#abfe2c"))
	styleWarn  = lipgloss.NewStyle().Foreground(lipgloss.Color("#f5c542"))
	styleFail  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5f5f"))
	styleDim   = lipgloss.NewStyle().Foreground(lipgloss.Color("#777777"))
)

// Output renders doctor progress
type Output struct {
	writer    io.Writer
	useColors bool
}

// NewOutput creates an Output. A nil writer means stdout.
func NewOutput(w io.Writer, useColors bool) *Output {
	if w == nil {
		w = os.Stdout
	}
	return &Output{writer: w, useColors: useColors}
}

// Header prints the title
func (o *Output) Header() {
	fmt.Fprintln(o.writer)
	fmt.Fprintln(o.writer, o.style(styleTitle, "lenspost doctor"))
	fmt.Fprintln(o.writer)
}

// CheckStart prints the progress line of a check
func (o *Output) CheckStart(index, total int, name string) {
	fmt.Fprintf(o.writer, "[%d/%d] %s\n", index, total, name)
}

// CheckResult prints one result
func (o *Output) CheckResult(result CheckResult) {
	icon, style := statusIcon(result.Status)
	fmt.Fprintf(o.writer, "  %s %s\n", o.style(style, icon), result.Message)

	if result.Details != "" {
		fmt.Fprintf(o.writer, "    %s\n", o.style(styleDim, result.Details))
	}
	if result.Status != StatusOK && result.FixCommand != "" {
		fmt.Fprintf(o.writer, "    Fix: %s\n", result.FixCommand)
	}
}

// Summary prints the totals
func (o *Output) Summary(summary Summary) {
	fmt.Fprintln(o.writer)
	line := fmt.Sprintf("Summary: %s, %s",
		o.style(styleOK, fmt.Sprintf("%d passed", summary.Passed)),
		o.failed(summary.Failed))
	if summary.Warned > 0 {
		line += ", " + o.style(styleWarn, fmt.Sprintf("%d warnings", summary.Warned))
	}
	if summary.Skipped > 0 {
		line += fmt.Sprintf(", %d skipped", summary.Skipped)
	}
	fmt.Fprintln(o.writer, line)
}

func (o *Output) failed(n int) string {
	s := fmt.Sprintf("%d failed", n)
	if n == 0 {
		return s
	}
	return o.style(styleFail, s)
}

func (o *Output) style(st lipgloss.Style, s string) string {
	if !o.useColors {
		return s
	}
	return st.Render(s)
}

func statusIcon(status Status) (string, lipgloss.Style) {
	switch status {
	case StatusOK:
		return "✓", styleOK
	case StatusWarning:
		return "!", styleWarn
	case StatusError:
		return "✗", styleFail
	default:
		return "-", styleDim
	}
}
