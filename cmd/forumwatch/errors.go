package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/kball/forumwatch/internal/ui"
)

func init() {
	color.NoColor = !ui.ShouldUseColor()
}

// FatalError writes an error message to stderr and exits with code 1.
// Use this for fatal errors that prevent the command from completing.
func FatalError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s "+format+"\n", append([]interface{}{color.RedString("Error:")}, args...)...)
	os.Exit(1)
}

// FatalErrorWithHint writes an error message with a hint to stderr and exits.
//
// Example:
//
//	FatalErrorWithHint("backend unreachable", "Check 'forumwatch config get server'")
func FatalErrorWithHint(message, hint string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", color.RedString("Error:"), message)
	fmt.Fprintf(os.Stderr, "%s %s\n", color.CyanString("Hint:"), hint)
	os.Exit(1)
}

// WarnError writes a warning message to stderr and returns.
// Use this for optional operations that enhance output but aren't required.
func WarnError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s "+format+"\n", append([]interface{}{color.YellowString("Warning:")}, args...)...)
}
