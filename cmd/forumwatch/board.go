package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kball/forumwatch/internal/board"
	"github.com/kball/forumwatch/internal/engine"
	"github.com/kball/forumwatch/internal/types"
	"github.com/kball/forumwatch/internal/ui"
)

var boardCmd = &cobra.Command{
	Use:     "board",
	GroupID: GroupViews,
	Short:   "Run one reconciliation pass and print the boards",
	Long: `Query the backend once for the current scope and filters, classify the
results into the in-progress, needs-me and recently-completed boards, and
print them.

Examples:
  forumwatch board
  forumwatch board --ticket T-42 --all
  forumwatch board --board needs_me --viewer-id human:alice
  forumwatch board --json`,
	RunE: runBoard,
}

func init() {
	boardCmd.Flags().Bool("all", false, "Print every board instead of only the active one")
	boardCmd.Flags().String("board", string(types.BoardInProgress), "Active board (in_progress|needs_me|recently_completed)")
	rootCmd.AddCommand(boardCmd)
}

// boardOutput is the structured form of one pass.
type boardOutput struct {
	Label           string         `json:"scope_label" yaml:"scope_label"`
	Scope           types.Scope    `json:"scope" yaml:"scope"`
	Filter          types.Filter   `json:"filter" yaml:"filter"`
	Board           types.BoardKey `json:"active_board" yaml:"active_board"`
	Counts          board.Counts   `json:"counts" yaml:"counts"`
	Buckets         board.Buckets  `json:"buckets" yaml:"buckets"`
	AvailableAgents []string       `json:"available_agents" yaml:"available_agents"`
	RefreshedAt     time.Time      `json:"refreshed_at" yaml:"refreshed_at"`
}

func parseBoardKey(value string) (types.BoardKey, error) {
	key := types.BoardKey(value)
	for _, k := range ui.Boards {
		if k == key {
			return key, nil
		}
	}
	return "", fmt.Errorf("unknown board %q (want in_progress, needs_me or recently_completed)", value)
}

func runBoard(cmd *cobra.Command, args []string) error {
	all, _ := cmd.Flags().GetBool("all")
	boardName, _ := cmd.Flags().GetString("board")
	key, err := parseBoardKey(boardName)
	if err != nil {
		return err
	}

	settings, err := loadSettings()
	if err != nil {
		return err
	}
	e := newEngine(settings, false)
	defer e.Close()

	e.SetActiveBoard(key)
	if err := e.Reconcile(rootCtx); err != nil {
		return fmt.Errorf("loading boards: %w", err)
	}
	s := e.State()

	if structuredOutput() {
		return outputStructured(cmd.OutOrStdout(), boardSnapshot(s))
	}
	fmt.Fprint(cmd.OutOrStdout(), ui.RenderBoards(s, all))
	return nil
}

func boardSnapshot(s engine.State) boardOutput {
	return boardOutput{
		Label:           s.Label,
		Scope:           s.Scope,
		Filter:          s.Filter,
		Board:           s.Board,
		Counts:          s.Counts,
		Buckets:         s.Buckets,
		AvailableAgents: s.AvailableAgents,
		RefreshedAt:     s.LastRefresh,
	}
}
