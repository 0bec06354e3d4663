package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kball/forumwatch/internal/timeline"
	"github.com/kball/forumwatch/internal/types"
	"github.com/kball/forumwatch/internal/ui"
)

var showCmd = &cobra.Command{
	Use:     "show <thread-id>",
	GroupID: GroupForum,
	Short:   "Show a thread and its timeline",
	Long: `Load a thread, print its posts and events as one timeline, and mark it
seen for the configured viewer.

Examples:
  forumwatch show th-123
  forumwatch show th-123 --no-pager
  forumwatch show th-123 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	showCmd.Flags().Bool("no-pager", false, "Print directly instead of through a pager")
	rootCmd.AddCommand(showCmd)
}

type showOutput struct {
	Detail   *types.ThreadDetail `json:"detail" yaml:"detail"`
	Timeline []timeline.Row      `json:"timeline" yaml:"timeline"`
}

func runShow(cmd *cobra.Command, args []string) error {
	noPager, _ := cmd.Flags().GetBool("no-pager")

	settings, err := loadSettings()
	if err != nil {
		return err
	}
	e := newEngine(settings, false)
	defer e.Close()

	if err := e.Select(rootCtx, args[0]); err != nil {
		return fmt.Errorf("loading thread %s: %w", args[0], err)
	}
	s := e.State()

	if structuredOutput() {
		return outputStructured(cmd.OutOrStdout(), showOutput{Detail: s.Detail, Timeline: s.Timeline})
	}
	return ui.ToPager(cmd.OutOrStdout(), ui.Timeline(s.Detail, s.Timeline), ui.PagerOptions{NoPager: noPager})
}
