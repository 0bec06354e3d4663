// Package ui renders forumwatch boards, timelines and diagnostics for the
// terminal. Colors are adaptive so both light and dark terminals stay legible.
package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kball/forumwatch/internal/types"
)

// Palette shared with the watch TUI.
var (
	ColorFail   = lipgloss.AdaptiveColor{Light: "#f07171", Dark: "#f07178"}
	ColorMuted  = lipgloss.AdaptiveColor{Light: "#828c99", Dark: "#6c7680"}
	ColorAccent = lipgloss.AdaptiveColor{Light: "#399ee6", Dark: "#59c2ff"}

	colorPass = lipgloss.AdaptiveColor{Light: "#86b300", Dark: "#c2d94c"}
	colorWarn = lipgloss.AdaptiveColor{Light: "#f2ae49", Dark: "#ffb454"}
)

var (
	passStyle    = lipgloss.NewStyle().Foreground(colorPass)
	warnStyle    = lipgloss.NewStyle().Foreground(colorWarn)
	failStyle    = lipgloss.NewStyle().Foreground(ColorFail)
	mutedStyle   = lipgloss.NewStyle().Foreground(ColorMuted)
	accentStyle  = lipgloss.NewStyle().Foreground(ColorAccent)
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)

	// Thread states by lifecycle phase.
	stateStyles = map[types.ThreadState]lipgloss.Style{
		types.StateNew:             lipgloss.NewStyle().Bold(true).Foreground(ColorAccent),
		types.StateTriaged:         warnStyle,
		types.StateWaitingOperator: warnStyle,
		types.StateWaitingHuman:    warnStyle,
		types.StateAnswered:        passStyle,
		types.StateClosed:          mutedStyle,
	}
	urgentStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorFail)
)

// Tree characters for the board layout.
const (
	TreeChild  = "⎿ "
	TreeLast   = "└─ "
	TreeIndent = "  "
)

const separator = "──────────────────────────────────────────"

// RenderState renders a thread state in its lifecycle color.
func RenderState(state types.ThreadState) string {
	s := state.Normalize()
	if style, ok := stateStyles[s]; ok {
		return style.Render(string(s))
	}
	return string(s)
}

// RenderPriority highlights urgent and high; normal and low are muted.
func RenderPriority(p types.Priority) string {
	switch p {
	case types.PriorityUrgent:
		return urgentStyle.Render(string(p))
	case types.PriorityHigh:
		return warnStyle.Render(string(p))
	}
	return mutedStyle.Render(string(p))
}

func RenderPass(s string) string   { return passStyle.Render(s) }
func RenderWarn(s string) string   { return warnStyle.Render(s) }
func RenderFail(s string) string   { return failStyle.Render(s) }
func RenderMuted(s string) string  { return mutedStyle.Render(s) }
func RenderAccent(s string) string { return accentStyle.Render(s) }

// RenderCategory renders a board heading in upper case.
func RenderCategory(s string) string {
	return headingStyle.Render(strings.ToUpper(s))
}

func RenderSeparator() string { return mutedStyle.Render(separator) }

func RenderPassIcon() string { return passStyle.Render("✓") }
func RenderWarnIcon() string { return warnStyle.Render("⚠") }
func RenderFailIcon() string { return failStyle.Render("✗") }
