package ui

import (
	"os"
	"testing"
)

func TestShouldUseColor(t *testing.T) {
	tests := []struct {
		name          string
		noColor       string
		cliColor      string
		cliColorForce string
		wantColor     bool
	}{
		{name: "NO_COLOR disables color", noColor: "1", wantColor: false},
		{name: "CLICOLOR=0 disables color", cliColor: "0", wantColor: false},
		{name: "CLICOLOR_FORCE enables color even in non-TTY", cliColorForce: "1", wantColor: true},
		{name: "CLICOLOR_FORCE=0 does not force", cliColorForce: "0", wantColor: false},
		{name: "NO_COLOR takes precedence over CLICOLOR_FORCE", noColor: "1", cliColorForce: "1", wantColor: false},
		{name: "no vars falls back to TTY check", wantColor: false}, // stdout is not a TTY under go test
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("NO_COLOR", tt.noColor)
			t.Setenv("CLICOLOR", tt.cliColor)
			t.Setenv("CLICOLOR_FORCE", tt.cliColorForce)

			if got := ShouldUseColor(); got != tt.wantColor {
				t.Errorf("ShouldUseColor() = %v, want %v", got, tt.wantColor)
			}
		})
	}
}

func TestIsAgentMode(t *testing.T) {
	t.Setenv("FORUMWATCH_AGENT_MODE", "1")
	if !IsAgentMode() {
		t.Error("IsAgentMode() = false with FORUMWATCH_AGENT_MODE=1")
	}
	if got := RenderMarkdown("**bold**"); got != "**bold**" {
		t.Errorf("RenderMarkdown in agent mode = %q, want raw text", got)
	}
	os.Unsetenv("FORUMWATCH_AGENT_MODE")
}

func TestTerminalWidthFallback(t *testing.T) {
	if w := TerminalWidth(); w <= 0 {
		t.Errorf("TerminalWidth() = %d, want positive", w)
	}
}
