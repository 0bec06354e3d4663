package ui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// maxReadableWidth caps the wrap width of rendered post bodies.
const maxReadableWidth = 100

// RenderMarkdown renders a post body with glamour at the terminal width.
// Plain text is returned unchanged in agent mode, when colors are off, or
// if rendering fails.
func RenderMarkdown(markdown string) string {
	if IsAgentMode() || !ShouldUseColor() {
		return markdown
	}

	width := TerminalWidth()
	if width > maxReadableWidth {
		width = maxReadableWidth
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return markdown
	}
	rendered, err := renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return strings.TrimRight(rendered, "\n")
}
