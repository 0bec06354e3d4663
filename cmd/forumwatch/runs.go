package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kball/forumwatch/internal/board"
	"github.com/kball/forumwatch/internal/types"
	"github.com/kball/forumwatch/internal/ui"
)

var runsCmd = &cobra.Command{
	Use:     "runs",
	GroupID: GroupViews,
	Short:   "List orchestrator runs and pending guidance",
	RunE:    runRuns,
}

func init() {
	runsCmd.Flags().Bool("pending", false, "Only show runs with pending guidance")
	rootCmd.AddCommand(runsCmd)
}

type runsOutput struct {
	Runs         []types.RunSnapshot `json:"runs" yaml:"runs"`
	KnownTickets []string            `json:"known_tickets" yaml:"known_tickets"`
}

func runRuns(cmd *cobra.Command, args []string) error {
	pendingOnly, _ := cmd.Flags().GetBool("pending")

	settings, err := loadSettings()
	if err != nil {
		return err
	}
	runs, err := newBackend(settings).ListRuns(rootCtx)
	if err != nil {
		return fmt.Errorf("listing runs: %w", err)
	}
	known := board.KnownTickets(runs)

	if pendingOnly {
		filtered := make([]types.RunSnapshot, 0, len(runs))
		for _, r := range runs {
			if len(r.PendingGuidance) > 0 {
				filtered = append(filtered, r)
			}
		}
		runs = filtered
	}

	if structuredOutput() {
		return outputStructured(cmd.OutOrStdout(), runsOutput{Runs: runs, KnownTickets: known})
	}
	fmt.Fprint(cmd.OutOrStdout(), ui.Runs(runs))
	return nil
}
