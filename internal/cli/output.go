package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorSuccess = lipgloss.Color("#2CD7C7")
	colorWarning = lipgloss.Color("#F4D03F")
	colorError   = lipgloss.Color("#E74C3C")
	colorMuted   = lipgloss.Color("#2C4A54")
)

var styles = struct {
	Title   lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Summary lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(colorSuccess),
	Muted:   lipgloss.NewStyle().Foreground(colorMuted),
	Success: lipgloss.NewStyle().Foreground(colorSuccess),
	Warning: lipgloss.NewStyle().Foreground(colorWarning),
	Error:   lipgloss.NewStyle().Foreground(colorError),
	Summary: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorMuted).
		Padding(0, 1),
}

// out is where command results are printed. Logs go to stderr.
var out io.Writer = os.Stdout

const separator = "─────────────────────────────────────────────────────────────────────────────"

func printTitle(s string) {
	if quiet {
		return
	}
	fmt.Fprintln(out, styles.Title.Render(s))
}

func printOK(format string, args ...any) {
	if quiet {
		return
	}
	fmt.Fprintf(out, "%s %s\n", styles.Success.Render("✓"), fmt.Sprintf(format, args...))
}

func printWarn(format string, args ...any) {
	fmt.Fprintf(out, "%s %s\n", styles.Warning.Render("⚠"), fmt.Sprintf(format, args...))
}

func printFail(format string, args ...any) {
	fmt.Fprintf(out, "%s %s\n", styles.Error.Render("✗"), fmt.Sprintf(format, args...))
}

func printBox(lines ...string) {
	if quiet {
		return
	}
	fmt.Fprintln(out, styles.Summary.Render(lipgloss.JoinVertical(lipgloss.Left, lines...)))
}
