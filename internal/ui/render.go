package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/kball/forumwatch/internal/board"
	"github.com/kball/forumwatch/internal/engine"
	"github.com/kball/forumwatch/internal/health"
	"github.com/kball/forumwatch/internal/timeline"
	"github.com/kball/forumwatch/internal/types"
)

// Boards lists the operator boards in display order.
var Boards = []types.BoardKey{types.BoardInProgress, types.BoardNeedsMe, types.BoardRecentlyCompleted}

// BoardTitle is the display name of a board.
func BoardTitle(key types.BoardKey) string {
	switch key {
	case types.BoardInProgress:
		return "In progress"
	case types.BoardNeedsMe:
		return "Needs me"
	case types.BoardRecentlyCompleted:
		return "Recently completed"
	}
	return string(key)
}

// BucketTitles names the buckets of a board, matching Buckets.Board order.
func BucketTitles(key types.BoardKey) []string {
	switch key {
	case types.BoardInProgress:
		return []string{"New", "Active", "Awaiting close"}
	case types.BoardNeedsMe:
		return []string{"Unseen", "Unanswered", "Assigned to me"}
	case types.BoardRecentlyCompleted:
		return []string{"Recently closed"}
	}
	return nil
}

// BoardCount is the summary count shown next to a board title.
func BoardCount(c board.Counts, key types.BoardKey) int {
	switch key {
	case types.BoardInProgress:
		return c.InProgress
	case types.BoardNeedsMe:
		return c.NeedsMe
	case types.BoardRecentlyCompleted:
		return c.RecentlyCompleted
	}
	return 0
}

// Header renders the scope label, board counts and any banner, notice or
// diagnostics warning.
func Header(s engine.State) string {
	var b strings.Builder
	counts := make([]string, 0, len(Boards))
	for _, key := range Boards {
		counts = append(counts, fmt.Sprintf("%s %d", strings.ToLower(BoardTitle(key)), BoardCount(s.Counts, key)))
	}
	fmt.Fprintf(&b, "%s %s  %s\n", RenderAccent("forumwatch"), s.Label, RenderMuted(strings.Join(counts, " · ")))

	if s.Banner != "" {
		fmt.Fprintf(&b, "%s %s\n", RenderFailIcon(), RenderFail(s.Banner))
	}
	if s.Notice != "" {
		fmt.Fprintf(&b, "%s %s\n", RenderWarnIcon(), RenderWarn(s.Notice))
	}
	if s.Warning != "" {
		fmt.Fprintf(&b, "%s %s\n", RenderWarnIcon(), RenderWarn(s.Warning))
	}
	return b.String()
}

// ThreadLine renders one thread as a single board row.
func ThreadLine(t types.Thread, width int) string {
	var who []string
	if t.AgentName != "" {
		who = append(who, "agent:"+t.AgentName)
	}
	if t.AssigneeName != "" {
		who = append(who, "→ "+t.AssigneeName)
	}

	title := OneLine(t.Title)
	if width > 0 {
		title = TruncateSimple(title, width)
	}

	line := fmt.Sprintf("%s  %s  %s  %s", t.ThreadID, RenderState(t.State), RenderPriority(t.Priority), title)
	if len(who) > 0 {
		line += "  " + RenderMuted(strings.Join(who, " "))
	}
	var flags []string
	if t.IsUnseen {
		flags = append(flags, "unseen")
	}
	if t.IsUnanswered {
		flags = append(flags, "unanswered")
	}
	if len(flags) > 0 {
		line += "  " + RenderAccent("["+strings.Join(flags, ",")+"]")
	}
	return line
}

// Board renders one board with its buckets.
func Board(s engine.State, key types.BoardKey) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", RenderCategory(BoardTitle(key)), RenderMuted(fmt.Sprintf("(%d)", BoardCount(s.Counts, key))))

	titles := BucketTitles(key)
	for i, rows := range s.Buckets.Board(key) {
		fmt.Fprintf(&b, "%s%s %s\n", TreeIndent, titles[i], RenderMuted(fmt.Sprintf("(%d)", len(rows))))
		if len(rows) == 0 {
			fmt.Fprintf(&b, "%s%s%s\n", TreeIndent, TreeLast, RenderMuted("none"))
			continue
		}
		for _, t := range rows {
			marker := TreeChild
			if t.ThreadID == s.Selected {
				marker = RenderAccent("▸ ")
			}
			fmt.Fprintf(&b, "%s%s%s\n", TreeIndent, marker, ThreadLine(t, 60))
		}
	}
	return b.String()
}

// RenderBoards renders the header and either the active board or all boards.
func RenderBoards(s engine.State, all bool) string {
	var b strings.Builder
	b.WriteString(Header(s))
	keys := []types.BoardKey{s.Board}
	if all {
		keys = Boards
	}
	for _, key := range keys {
		b.WriteString("\n")
		b.WriteString(Board(s, key))
	}
	return b.String()
}

// Timeline renders a thread header followed by its timeline rows.
func Timeline(detail *types.ThreadDetail, rows []timeline.Row) string {
	if detail == nil {
		return RenderMuted("No thread selected.") + "\n"
	}
	t := detail.Thread

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", RenderAccent(t.ThreadID), OneLine(t.Title))
	fmt.Fprintf(&b, "%s  %s  ticket:%s", RenderState(t.State), RenderPriority(t.Priority), t.Ticket)
	if t.RunID != "" {
		fmt.Fprintf(&b, "  run:%s", t.RunID)
	}
	if t.AgentName != "" {
		fmt.Fprintf(&b, "  agent:%s", t.AgentName)
	}
	if t.AssigneeName != "" {
		fmt.Fprintf(&b, "  assignee:%s", t.AssigneeName)
	}
	b.WriteString("\n")
	b.WriteString(RenderSeparator())
	b.WriteString("\n")

	if len(rows) == 0 {
		b.WriteString(RenderMuted("No events.") + "\n")
		return b.String()
	}
	for _, row := range rows {
		fmt.Fprintf(&b, "%s %s %s %s\n",
			RenderMuted(fmt.Sprintf("#%d", row.Sequence)),
			RenderMuted(formatTime(row.OccurredAt)),
			RenderAccent(row.EventType),
			fmt.Sprintf("%s/%s", row.ActorType, row.ActorName),
		)
		if row.Body == "" {
			continue
		}
		body := row.Body
		if row.FromPost {
			body = RenderMarkdown(body)
		} else {
			body = RenderMuted(body)
		}
		b.WriteString(Indent(body, TreeIndent))
		b.WriteString("\n")
	}
	return b.String()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return timeline.Placeholder
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

// Runs renders the runs list with pending guidance.
func Runs(runs []types.RunSnapshot) string {
	if len(runs) == 0 {
		return RenderMuted("No runs.") + "\n"
	}
	var b strings.Builder
	for _, r := range runs {
		fmt.Fprintf(&b, "%s  %s  %s\n", RenderAccent(r.RunID), r.Status, RenderMuted(strings.Join(r.Tickets, ", ")))
		for _, g := range r.PendingGuidance {
			fmt.Fprintf(&b, "%s%s%s %s: %s\n", TreeIndent, TreeChild, g.ThreadID, g.AgentName, OneLine(g.Question))
		}
	}
	return b.String()
}

// Health renders the debug snapshot as a short diagnostics report.
func Health(snap *types.DebugSnapshot) string {
	if snap == nil {
		return RenderMuted("No diagnostics yet.") + "\n"
	}

	var b strings.Builder
	if w := health.Warning(snap); w != "" {
		fmt.Fprintf(&b, "%s %s\n", RenderWarnIcon(), RenderWarn(w))
	} else {
		fmt.Fprintf(&b, "%s %s\n", RenderPassIcon(), RenderPass("Forum bus and outbox look healthy."))
	}

	bus := snap.Bus
	status := RenderPass("healthy")
	if !bus.Healthy {
		status = RenderFail("unhealthy")
		if bus.HealthError != "" {
			status += " " + RenderMuted("("+bus.HealthError+")")
		}
	}
	fmt.Fprintf(&b, "\n%s\n", RenderCategory("bus"))
	fmt.Fprintf(&b, "%sstatus: %s  running: %t\n", TreeIndent, status, bus.Running)
	fmt.Fprintf(&b, "%sstream: %s  group: %s  consumer: %s\n", TreeIndent, bus.StreamName, bus.ConsumerGroup, bus.ConsumerName)
	for _, topic := range bus.Topics {
		line := fmt.Sprintf("%s len=%d pending=%d lag=%d", topic.Topic, topic.StreamLength, topic.ConsumerGroupPending, topic.ConsumerGroupLag)
		if topic.TopicError != "" {
			line += " " + RenderFail(topic.TopicError)
		}
		fmt.Fprintf(&b, "%s%s%s\n", TreeIndent, TreeChild, line)
	}

	o := snap.Outbox
	fmt.Fprintf(&b, "\n%s\n", RenderCategory("outbox"))
	fmt.Fprintf(&b, "%spending: %d  processing: %d  failed: %d  oldest pending: %ds\n",
		TreeIndent, o.PendingCount, o.ProcessingCount, o.FailedCount, o.OldestPendingAgeSeconds)
	for _, m := range snap.OutboxMessages {
		line := fmt.Sprintf("%s %s %s attempts=%d", m.MessageID, m.Topic, m.Status, m.AttemptCount)
		if m.LastError != "" {
			line += " " + RenderFail(OneLine(m.LastError))
		}
		fmt.Fprintf(&b, "%s%s%s\n", TreeIndent, TreeChild, line)
	}
	return b.String()
}
