package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kball/forumwatch/internal/config"
	"github.com/kball/forumwatch/internal/debug"
	"github.com/kball/forumwatch/internal/telemetry"
)

var (
	jsonOutput   bool
	outputFormat string
	verboseFlag  bool
	quietFlag    bool

	// Scope and filter flags. Each maps onto a config key and overrides it
	// only when set on the command line.
	serverURL  string
	ticketFlag string
	runFlag    string
	viewerType string
	viewerID   string
	topicMode  string
	agentFlag  string
	priority   string
	queryFlag  string

	// Signal-aware context for graceful cancellation
	rootCtx    context.Context
	rootCancel context.CancelFunc

	// flagOverrides remembers which config keys came from flags so they can be
	// re-applied when the config file is reloaded.
	flagOverrides map[string]string
)

// flagKeys maps persistent flag names onto config keys.
var flagKeys = map[string]string{
	"server":      "server",
	"ticket":      "ticket",
	"run":         "run",
	"viewer-type": "viewer.type",
	"viewer-id":   "viewer.id",
	"topic-mode":  "topic-mode",
	"agent":       "agent",
	"priority":    "priority",
	"query":       "query",
}

const (
	GroupForum = "forum"
	GroupViews = "views"
	GroupSetup = "setup"
)

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: GroupForum, Title: "Working With Threads:"},
		&cobra.Group{ID: GroupViews, Title: "Views & Diagnostics:"},
		&cobra.Group{ID: GroupSetup, Title: "Setup & Configuration:"},
	)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&serverURL, "server", "", "Forum backend base URL (default: config server)")
	pf.StringVar(&ticketFlag, "ticket", "", "Scope to a ticket")
	pf.StringVar(&runFlag, "run", "", "Scope to a run")
	pf.StringVar(&viewerType, "viewer-type", "", "Viewer type for queues (human|agent)")
	pf.StringVar(&viewerID, "viewer-id", "", "Viewer identity, e.g. human:operator")
	pf.StringVar(&topicMode, "topic-mode", "", "Board grouping (ticket|run|agent)")
	pf.StringVar(&agentFlag, "agent", "", "Agent filter (agent topic mode)")
	pf.StringVar(&priority, "priority", "", "Priority filter (urgent|high|normal|low)")
	pf.StringVar(&queryFlag, "query", "", "Free-text filter")
	pf.BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	pf.StringVar(&outputFormat, "format", "", "Output format for structured output (json|yaml)")
	pf.BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose/debug output")
	pf.BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output (errors only)")

	rootCmd.Flags().BoolP("version", "V", false, "Print version information")
}

var rootCmd = &cobra.Command{
	Use:           "forumwatch",
	Short:         "forumwatch - operator console for agent forum threads",
	Long:          `Watch, triage and answer the forum threads humans and agents open against a shared backend.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Fprintf(cmd.OutOrStdout(), "forumwatch version %s (%s)\n", Version, Build)
			return nil
		}
		return cmd.Help()
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupSignalContext()
		applyVerbosityFlags()
		if err := config.Initialize(); err != nil {
			WarnError("failed to initialize config: %v", err)
		}
		if err := applyViperOverrides(cmd); err != nil {
			return err
		}
		if err := telemetry.Init(rootCtx, "forumwatch", Version); err != nil {
			debug.Logger().Warn().Err(err).Msg("telemetry init failed")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(ctx); err != nil {
			debug.Logger().Warn().Err(err).Msg("telemetry shutdown failed")
		}
		if rootCancel != nil {
			rootCancel()
		}
	},
}

func setupSignalContext() {
	rootCtx, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func applyVerbosityFlags() {
	debug.SetVerbose(verboseFlag)
	debug.SetQuiet(quietFlag)
}

// applyViperOverrides validates changed flags and pushes them into the config
// layer so that flags beat env vars and the config file.
func applyViperOverrides(cmd *cobra.Command) error {
	flagOverrides = make(map[string]string)
	for flagName, key := range flagKeys {
		f := cmd.Flags().Lookup(flagName)
		if f == nil || !f.Changed {
			continue
		}
		value := f.Value.String()
		if err := config.ValidateKey(key, value); err != nil {
			return fmt.Errorf("--%s: %w", flagName, err)
		}
		flagOverrides[key] = value
	}
	reapplyOverrides()

	if !cmd.Flags().Changed("json") {
		jsonOutput = config.GetBool("json")
	}
	switch outputFormat {
	case "", "json", "yaml":
	default:
		return fmt.Errorf("--format: unsupported format %q (want json or yaml)", outputFormat)
	}
	return nil
}

func reapplyOverrides() {
	for key, value := range flagOverrides {
		config.Set(key, value)
	}
}

// loadSettings resolves settings and checks the values the engine depends on.
func loadSettings() (config.Settings, error) {
	s := config.Load()
	if s.Server == "" {
		return s, fmt.Errorf("no server configured")
	}
	if s.TopicMode != "" && !s.TopicMode.IsValid() {
		return s, fmt.Errorf("invalid topic mode %q", s.TopicMode)
	}
	return s, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		FatalError("%v", err)
	}
}
