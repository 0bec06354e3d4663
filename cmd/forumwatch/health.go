package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kball/forumwatch/internal/board"
	"github.com/kball/forumwatch/internal/health"
	"github.com/kball/forumwatch/internal/types"
	"github.com/kball/forumwatch/internal/ui"
)

var healthCmd = &cobra.Command{
	Use:     "health",
	GroupID: GroupViews,
	Short:   "Show forum bus and outbox diagnostics for the current scope",
	Long: `Fetch one debug snapshot for the current scope and report bus health,
outbox backlog and recent events. Exits non-zero with --strict when a
diagnostics warning is present.`,
	RunE: runHealth,
}

func init() {
	healthCmd.Flags().Int("limit", 0, "Outbox messages to fetch (default: config debug.limit)")
	healthCmd.Flags().Bool("strict", false, "Fail when the snapshot carries a warning")
	rootCmd.AddCommand(healthCmd)
}

type healthOutput struct {
	Warning  string               `json:"warning,omitempty" yaml:"warning,omitempty"`
	Snapshot *types.DebugSnapshot `json:"snapshot" yaml:"snapshot"`
}

func runHealth(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	strict, _ := cmd.Flags().GetBool("strict")

	settings, err := loadSettings()
	if err != nil {
		return err
	}
	if limit <= 0 {
		limit = settings.DebugLimit
	}

	scope := board.ResolveScope(settings.Ticket, settings.Run)
	snap, err := newBackend(settings).DebugSnapshot(rootCtx, scope, limit)
	if err != nil {
		return fmt.Errorf("fetching debug snapshot: %w", err)
	}
	warning := health.Warning(snap)

	if structuredOutput() {
		if err := outputStructured(cmd.OutOrStdout(), healthOutput{Warning: warning, Snapshot: snap}); err != nil {
			return err
		}
	} else {
		fmt.Fprint(cmd.OutOrStdout(), ui.Health(snap))
	}
	if strict && warning != "" {
		return fmt.Errorf("%s", warning)
	}
	return nil
}
