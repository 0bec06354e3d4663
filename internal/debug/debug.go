package debug

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	enabled     = os.Getenv("FORUMWATCH_DEBUG") != ""
	verboseMode = false
	quietMode   = false

	logMu     sync.Mutex
	logOutput io.Writer = os.Stderr
	logger    *zerolog.Logger
)

func Enabled() bool {
	return enabled || verboseMode
}

// SetVerbose enables verbose/debug output
func SetVerbose(verbose bool) {
	verboseMode = verbose
	resetLogger()
}

// SetQuiet enables quiet mode (suppress non-essential output)
func SetQuiet(quiet bool) {
	quietMode = quiet
}

// IsQuiet returns true if quiet mode is enabled
func IsQuiet() bool {
	return quietMode
}

func Logf(format string, args ...interface{}) {
	if enabled || verboseMode {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

func Printf(format string, args ...interface{}) {
	if enabled || verboseMode {
		fmt.Printf(format, args...)
	}
}

// PrintNormal prints output unless quiet mode is enabled
// Use this for normal informational output that should be suppressed in quiet mode
func PrintNormal(format string, args ...interface{}) {
	if !quietMode {
		fmt.Printf(format, args...)
	}
}

// PrintlnNormal prints a line unless quiet mode is enabled
func PrintlnNormal(args ...interface{}) {
	if !quietMode {
		fmt.Println(args...)
	}
}

// Logger returns the shared structured logger. It logs at debug level when
// FORUMWATCH_DEBUG is set or verbose mode is on, and at warn level otherwise.
func Logger() *zerolog.Logger {
	logMu.Lock()
	defer logMu.Unlock()
	if logger == nil {
		l := newLogger(logOutput)
		logger = &l
	}
	return logger
}

// SetOutput redirects the structured logger, e.g. into the TUI's log pane
// or a test buffer.
func SetOutput(w io.Writer) {
	logMu.Lock()
	logOutput = w
	logger = nil
	logMu.Unlock()
}

func resetLogger() {
	logMu.Lock()
	logger = nil
	logMu.Unlock()
}

func newLogger(w io.Writer) zerolog.Logger {
	level := zerolog.WarnLevel
	if enabled || verboseMode {
		level = zerolog.DebugLevel
	}
	if f, ok := w.(*os.File); ok && (f == os.Stderr || f == os.Stdout) {
		w = zerolog.ConsoleWriter{Out: f, TimeFormat: time.TimeOnly}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
