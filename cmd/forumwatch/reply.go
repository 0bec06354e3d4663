package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/kball/forumwatch/internal/debug"
)

var replyCmd = &cobra.Command{
	Use:     "reply <thread-id> [body...]",
	GroupID: GroupForum,
	Short:   "Post a reply to a thread",
	Long: `Post a reply as the configured viewer. The body comes from --body, the
remaining arguments, or stdin when it is not a terminal.

Examples:
  forumwatch reply th-123 "Use the staging cluster."
  forumwatch reply th-123 --body "Approved"
  echo "see runbook" | forumwatch reply th-123`,
	Args: cobra.MinimumNArgs(1),
	RunE: runReply,
}

func init() {
	replyCmd.Flags().String("body", "", "Reply body")
	rootCmd.AddCommand(replyCmd)
}

func replyBody(cmd *cobra.Command, args []string) (string, error) {
	body, _ := cmd.Flags().GetString("body")
	if body == "" && len(args) > 1 {
		body = strings.Join(args[1:], " ")
	}
	if body == "" && !term.IsTerminal(int(os.Stdin.Fd())) {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("reading reply from stdin: %w", err)
		}
		body = string(data)
	}
	return strings.TrimSpace(body), nil
}

func runReply(cmd *cobra.Command, args []string) error {
	threadID := args[0]
	body, err := replyBody(cmd, args)
	if err != nil {
		return err
	}

	settings, err := loadSettings()
	if err != nil {
		return err
	}
	e := newEngine(settings, false)
	defer e.Close()

	if err := e.Select(rootCtx, threadID); err != nil {
		return fmt.Errorf("loading thread %s: %w", threadID, err)
	}
	c := e.State().Compose
	c.Reply = body
	e.SetCompose(c)
	if err := e.ReplyReady(); err != nil {
		return err
	}
	if err := e.Reply(rootCtx); err != nil {
		return fmt.Errorf("replying to %s: %w", threadID, err)
	}

	s := e.State()
	if structuredOutput() {
		return outputStructured(cmd.OutOrStdout(), showOutput{Detail: s.Detail, Timeline: s.Timeline})
	}
	debug.Logf("reply posted to %s\n", threadID)
	if !debug.IsQuiet() {
		state := ""
		if s.Detail != nil {
			state = string(s.Detail.Thread.State)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Replied to %s (%s)\n", threadID, state)
	}
	return nil
}
