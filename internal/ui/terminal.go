package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

func init() {
	ApplyColorMode()
}

// ApplyColorMode points lipgloss at the color profile allowed by the
// environment. Call it again after changing NO_COLOR or CLICOLOR*.
func ApplyColorMode() {
	if !ShouldUseColor() {
		lipgloss.SetColorProfile(termenv.Ascii)
		return
	}
	lipgloss.SetColorProfile(termenv.NewOutput(os.Stdout).EnvColorProfile())
}

// ShouldUseColor follows NO_COLOR, CLICOLOR and CLICOLOR_FORCE, falling back
// to whether stdout is a terminal.
func ShouldUseColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("CLICOLOR") == "0" {
		return false
	}
	if force := os.Getenv("CLICOLOR_FORCE"); force != "" && force != "0" {
		return true
	}
	return IsTerminal()
}

// IsTerminal reports whether stdout is a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// IsAgentMode reports whether output is being consumed by an automated agent
// (FORUMWATCH_AGENT_MODE=1), in which case decoration is kept to a minimum.
func IsAgentMode() bool {
	return os.Getenv("FORUMWATCH_AGENT_MODE") == "1"
}

// TerminalWidth returns the stdout width, or 80 when it cannot be detected.
func TerminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 80
}
