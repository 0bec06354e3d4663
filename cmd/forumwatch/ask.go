package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/kball/forumwatch/internal/engine"
	"github.com/kball/forumwatch/internal/types"
)

var askCmd = &cobra.Command{
	Use:     "ask",
	GroupID: GroupForum,
	Short:   "Open a new question thread on a ticket",
	Long: `Open a new thread as the configured (human) viewer. The question ticket
defaults to --ticket. When the title or body is missing and stdin is a
terminal, an interactive form asks for them.

After the thread is created the scope moves to the question's ticket and the
new thread is loaded and marked seen.

Examples:
  forumwatch ask --ticket T-42 --title "Which region?" --body "eu-west or us-east?"
  forumwatch ask --question-ticket T-7 --question-priority urgent --title ... --body ...
  forumwatch ask   # interactive`,
	RunE: runAsk,
}

func init() {
	askCmd.Flags().String("title", "", "Thread title")
	askCmd.Flags().String("body", "", "Opening post body")
	askCmd.Flags().String("question-ticket", "", "Ticket to ask on (default: --ticket)")
	askCmd.Flags().String("question-priority", string(types.PriorityNormal), "Thread priority (urgent|high|normal|low)")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	title, _ := cmd.Flags().GetString("title")
	body, _ := cmd.Flags().GetString("body")
	ticket, _ := cmd.Flags().GetString("question-ticket")
	prio, _ := cmd.Flags().GetString("question-priority")

	settings, err := loadSettings()
	if err != nil {
		return err
	}
	e := newEngine(settings, false)
	defer e.Close()

	c := e.State().Compose
	if ticket != "" {
		c.QuestionTicket = ticket
	}
	c.Title = title
	c.Body = body
	c.Priority = types.Priority(prio)

	if (strings.TrimSpace(c.Title) == "" || strings.TrimSpace(c.Body) == "") && term.IsTerminal(int(os.Stdin.Fd())) {
		if err := runAskForm(&c); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				fmt.Fprintln(os.Stderr, "Question cancelled.")
				return nil
			}
			return fmt.Errorf("form error: %w", err)
		}
	}

	e.SetCompose(c)
	if err := e.CreateReady(); err != nil {
		return err
	}
	created, err := e.CreateThread(rootCtx)
	if created == nil {
		return fmt.Errorf("creating thread: %w", err)
	}
	if err != nil {
		WarnError("thread %s created, but refreshing failed: %v", created.ThreadID, err)
	}

	if structuredOutput() {
		return outputStructured(cmd.OutOrStdout(), created)
	}
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Fprintf(cmd.OutOrStdout(), "%s Opened %s on %s: %s\n", green("✓"), created.ThreadID, created.Ticket, created.Title)
	return nil
}

func runAskForm(c *engine.Compose) error {
	priority := string(c.Priority)
	priorityOptions := []huh.Option[string]{
		huh.NewOption("Urgent", string(types.PriorityUrgent)),
		huh.NewOption("High", string(types.PriorityHigh)),
		huh.NewOption("Normal (default)", string(types.PriorityNormal)),
		huh.NewOption("Low", string(types.PriorityLow)),
	}

	required := func(field string) func(string) error {
		return func(s string) error {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("%s is required", field)
			}
			return nil
		}
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Ticket").
				Description("Ticket the question belongs to").
				Placeholder("e.g., T-42").
				Value(&c.QuestionTicket).
				Validate(required("ticket")),

			huh.NewInput().
				Title("Title").
				Description("One-line question (required)").
				Value(&c.Title).
				Validate(required("title")),

			huh.NewText().
				Title("Body").
				Description("Context the agents need to answer").
				CharLimit(10000).
				Value(&c.Body).
				Validate(required("body")),

			huh.NewSelect[string]().
				Title("Priority").
				Options(priorityOptions...).
				Value(&priority),
		),
	).WithTheme(huh.ThemeDracula())

	if err := form.Run(); err != nil {
		return err
	}
	c.Priority = types.Priority(priority)
	return nil
}
