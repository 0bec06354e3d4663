package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kball/forumwatch/internal/debug"
	"github.com/kball/forumwatch/internal/forumapi"
)

var seenCmd = &cobra.Command{
	Use:     "seen <thread-id>",
	GroupID: GroupForum,
	Short:   "Mark a thread seen for the configured viewer",
	Long: `Record that the viewer has seen a thread up to an event sequence. By
default the thread's latest event sequence is used.

Unlike the implicit mark-seen done by 'show' and 'watch', failures here are
reported.`,
	Args: cobra.ExactArgs(1),
	RunE: runSeen,
}

func init() {
	seenCmd.Flags().Int64("sequence", -1, "Event sequence to mark seen (default: latest)")
	rootCmd.AddCommand(seenCmd)
}

func runSeen(cmd *cobra.Command, args []string) error {
	threadID := strings.TrimSpace(args[0])
	seq, _ := cmd.Flags().GetInt64("sequence")

	settings, err := loadSettings()
	if err != nil {
		return err
	}
	if settings.ViewerType == "" || strings.TrimSpace(settings.ViewerID) == "" {
		return fmt.Errorf("viewer type and viewer id are required")
	}
	backend := newBackend(settings)

	if seq < 0 {
		detail, err := backend.GetThread(rootCtx, threadID)
		if err != nil {
			return fmt.Errorf("loading thread %s: %w", threadID, err)
		}
		seq = detail.Thread.LastEventSequence
	}

	req := forumapi.SeenRequest{
		ViewerType:            settings.ViewerType,
		ViewerID:              strings.TrimSpace(settings.ViewerID),
		LastSeenEventSequence: seq,
	}
	if err := backend.MarkSeen(rootCtx, threadID, req); err != nil {
		return fmt.Errorf("marking %s seen: %w", threadID, err)
	}

	if structuredOutput() {
		return outputStructured(cmd.OutOrStdout(), map[string]interface{}{
			"thread_id":                threadID,
			"viewer_type":              req.ViewerType,
			"viewer_id":                req.ViewerID,
			"last_seen_event_sequence": seq,
		})
	}
	debug.Logf("marked %s seen at sequence %d\n", threadID, seq)
	if !debug.IsQuiet() {
		fmt.Fprintf(cmd.OutOrStdout(), "Marked %s seen (sequence %d) for %s\n", threadID, seq, req.ViewerID)
	}
	return nil
}
