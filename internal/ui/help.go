package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/pleimann/camel-keys/internal/utils"
)

// IsInteractive reports whether stdin and stdout are both terminals.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// PrintVersion displays the styled version information
func PrintVersion(w io.Writer, version string) {
	banner := lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorPrimary).
		Render(utils.ExecutableName())

	versionTag := lipgloss.NewStyle().
		Foreground(ColorSuccess).
		Render("v" + strings.TrimPrefix(version, "v"))

	fmt.Fprintf(w, "%s %s\n", banner, versionTag)
	fmt.Fprintln(w, Muted("Layered keyboard remapper for Linux input devices"))
}

// PrintError displays a styled error message
func PrintError(w io.Writer, message string) {
	fmt.Fprintln(w, Error(message))
}

// PrintFatalError displays a styled fatal error message with context. Extra
// lines of the message are indented below it.
func PrintFatalError(w io.Writer, context string, err error) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, Error(context))
	for _, line := range strings.Split(err.Error(), "\n") {
		fmt.Fprintf(w, "  %s\n", Muted(strings.TrimSpace(line)))
	}
	fmt.Fprintln(w)
}

// PrintNextSteps suggests the commands to run after a config was written.
func PrintNextSteps(w io.Writer, configPath string) {
	name := utils.ExecutableName()
	steps := []struct {
		cmd  string
		desc string
	}{
		{name + " check --config " + configPath, "Validate the keymap and show what it emits"},
		{name + " run --config " + configPath, "Start remapping"},
		{name + " run --watch --config " + configPath, "Start remapping and reload on save"},
	}

	cmdStyle := lipgloss.NewStyle().
		Foreground(ColorSecondary)

	maxLen := 0
	for _, s := range steps {
		maxLen = max(maxLen, len(s.cmd))
	}

	fmt.Fprintln(w, Bold("Next steps"))
	for _, s := range steps {
		padding := strings.Repeat(" ", maxLen-len(s.cmd)+2)
		fmt.Fprintf(w, "  %s%s%s\n", cmdStyle.Render(s.cmd), padding, Muted(s.desc))
	}
	fmt.Fprintln(w)
}
