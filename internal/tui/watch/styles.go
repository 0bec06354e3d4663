package watch

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/kball/forumwatch/internal/ui"
)

var (
	colorWhite = lipgloss.Color("15")
	colorTab   = lipgloss.Color("236")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ui.ColorAccent)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorWhite).
			Background(colorTab).
			Padding(0, 1)

	tabStyle = lipgloss.NewStyle().
			Foreground(ui.ColorMuted).
			Padding(0, 1)

	bucketStyle = lipgloss.NewStyle().
			Foreground(ui.ColorMuted).
			Bold(true)

	cursorStyle = lipgloss.NewStyle().
			Background(colorTab).
			Foreground(colorWhite).
			Bold(true)

	detailBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.NormalBorder(), true, false, false, false).
				BorderForeground(ui.ColorMuted)

	inputLabelStyle = lipgloss.NewStyle().
			Foreground(ui.ColorAccent).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(ui.ColorMuted)

	statusStyle = lipgloss.NewStyle().
			Foreground(ui.ColorMuted).
			Italic(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(ui.ColorFail)
)
