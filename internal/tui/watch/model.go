// Package watch provides a Bubbletea TUI over a live forum engine. It renders
// the operator boards, follows engine state updates as they are published,
// and lets the operator open threads, read their timeline and post replies.
package watch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kball/forumwatch/internal/engine"
	"github.com/kball/forumwatch/internal/types"
	"github.com/kball/forumwatch/internal/ui"
)

const opTimeout = 30 * time.Second

// Controller is the subset of the engine the TUI drives.
type Controller interface {
	State() engine.State
	Subscribe() (<-chan engine.State, func())
	SetActiveBoard(key types.BoardKey)
	Select(ctx context.Context, threadID string) error
	ClearSelection()
	Refresh(ctx context.Context) error
	SetCompose(c engine.Compose)
	Reply(ctx context.Context) error
}

// InputMode represents the current input mode.
type InputMode int

const (
	ModeNormal InputMode = iota
	ModeReply            // Composing a reply to the selected thread
)

// Model is the Bubbletea model for the watch TUI.
type Model struct {
	width, height int

	ctrl    Controller
	state   engine.State
	updates <-chan engine.State
	cancel  func()

	cursor int

	inputMode InputMode
	textInput textarea.Model

	keys           KeyMap
	help           help.Model
	showHelp       bool
	detailViewport viewport.Model
	detailFor      string
	err            error
	status         string
}

type (
	stateMsg  engine.State
	closedMsg struct{}
	opMsg     struct {
		op  string
		id  string
		err error
	}
)

// New creates a watch model over ctrl and subscribes to its updates.
func New(ctrl Controller) *Model {
	ta := textarea.New()
	ta.Placeholder = "Write a reply..."
	ta.SetHeight(3)
	ta.SetWidth(60)

	h := help.New()
	h.ShowAll = false

	updates, cancel := ctrl.Subscribe()
	return &Model{
		ctrl:           ctrl,
		state:          ctrl.State(),
		updates:        updates,
		cancel:         cancel,
		keys:           DefaultKeyMap(),
		help:           h,
		textInput:      ta,
		detailViewport: viewport.New(0, 0),
	}
}

// Init initializes the model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.waitForState(),
		tea.SetWindowTitle("forumwatch"),
	)
}

// Close releases the state subscription.
func (m *Model) Close() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

func (m *Model) waitForState() tea.Cmd {
	updates := m.updates
	return func() tea.Msg {
		s, ok := <-updates
		if !ok {
			return closedMsg{}
		}
		return stateMsg(s)
	}
}

// rows flattens the active board's buckets in display order.
func (m *Model) rows() []types.Thread {
	var out []types.Thread
	for _, bucket := range m.state.ActiveBuckets() {
		out = append(out, bucket...)
	}
	return out
}

func (m *Model) run(op, id string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		return opMsg{op: op, id: id, err: fn(ctx)}
	}
}

func (m *Model) switchBoard(step int) {
	idx := 0
	for i, k := range ui.Boards {
		if k == m.state.Board {
			idx = i
		}
	}
	idx = (idx + step + len(ui.Boards)) % len(ui.Boards)
	m.state.Board = ui.Boards[idx]
	m.cursor = 0
	m.ctrl.SetActiveBoard(m.state.Board)
}

func (m *Model) clampCursor() {
	n := len(m.rows())
	if m.cursor >= n {
		m.cursor = max(0, n-1)
	}
}

func (m *Model) syncDetail() {
	content := ui.Timeline(m.state.Detail, m.state.Timeline)
	atBottom := m.detailViewport.AtBottom()
	m.detailViewport.SetContent(content)
	if m.detailFor != m.state.Selected {
		m.detailFor = m.state.Selected
		m.detailViewport.GotoTop()
	} else if atBottom {
		m.detailViewport.GotoBottom()
	}
}

// Update handles messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.detailViewport.Width = msg.Width - 4
		m.detailViewport.Height = msg.Height/2 - 4
		m.textInput.SetWidth(msg.Width - 10)
		m.help.Width = msg.Width

	case tea.KeyMsg:
		if m.inputMode != ModeNormal {
			return m.handleInputMode(msg)
		}

		switch {
		case key.Matches(msg, m.keys.Quit):
			m.Close()
			return m, tea.Quit

		case key.Matches(msg, m.keys.Help):
			m.showHelp = !m.showHelp
			m.help.ShowAll = m.showHelp

		case key.Matches(msg, m.keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}

		case key.Matches(msg, m.keys.Down):
			if m.cursor < len(m.rows())-1 {
				m.cursor++
			}

		case key.Matches(msg, m.keys.NextBoard):
			m.switchBoard(1)

		case key.Matches(msg, m.keys.PrevBoard):
			m.switchBoard(-1)

		case key.Matches(msg, m.keys.Select):
			rows := m.rows()
			if m.cursor < len(rows) {
				id := rows[m.cursor].ThreadID
				m.status = fmt.Sprintf("Opening %s...", id)
				cmds = append(cmds, m.run("select", id, func(ctx context.Context) error {
					return m.ctrl.Select(ctx, id)
				}))
			}

		case key.Matches(msg, m.keys.Clear):
			if m.state.Selected != "" {
				m.ctrl.ClearSelection()
				m.status = ""
			}

		case key.Matches(msg, m.keys.Reply):
			if m.state.Selected == "" {
				m.status = "Open a thread before replying."
				break
			}
			m.inputMode = ModeReply
			m.textInput.SetValue(m.state.Compose.Reply)
			m.textInput.Focus()

		case key.Matches(msg, m.keys.Refresh):
			m.status = "Refreshing..."
			cmds = append(cmds, m.run("refresh", "", m.ctrl.Refresh))

		case key.Matches(msg, m.keys.PageUp):
			m.detailViewport.HalfViewUp()

		case key.Matches(msg, m.keys.PageDown):
			m.detailViewport.HalfViewDown()
		}

	case stateMsg:
		m.state = engine.State(msg)
		m.clampCursor()
		m.syncDetail()
		cmds = append(cmds, m.waitForState())

	case closedMsg:
		m.status = "Engine closed."
		return m, tea.Quit

	case opMsg:
		if msg.err != nil {
			m.err = msg.err
			m.status = fmt.Sprintf("%s failed: %v", msg.op, msg.err)
			break
		}
		m.err = nil
		switch msg.op {
		case "reply":
			m.status = fmt.Sprintf("Replied to %s", msg.id)
		case "select":
			m.status = fmt.Sprintf("Opened %s", msg.id)
		default:
			m.status = fmt.Sprintf("Updated %s", time.Now().Format("15:04:05"))
		}
	}

	return m, tea.Batch(cmds...)
}

// handleInputMode handles key presses while composing.
func (m *Model) handleInputMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.inputMode = ModeNormal
		m.textInput.Blur()
		c := m.state.Compose
		c.Reply = m.textInput.Value()
		m.ctrl.SetCompose(c)
		return m, nil

	case tea.KeyEnter:
		body := m.textInput.Value()
		m.inputMode = ModeNormal
		m.textInput.Blur()
		if strings.TrimSpace(body) == "" {
			m.status = "Reply body is empty."
			return m, nil
		}
		c := m.state.Compose
		c.Reply = body
		m.ctrl.SetCompose(c)
		m.textInput.SetValue("")
		id := m.state.Selected
		m.status = fmt.Sprintf("Replying to %s...", id)
		return m, m.run("reply", id, m.ctrl.Reply)
	}

	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

// View renders the TUI.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(ui.Header(m.state))
	b.WriteString(m.renderTabs())
	b.WriteString("\n\n")
	b.WriteString(m.renderBoard())

	if m.state.Selected != "" {
		b.WriteString(detailBorderStyle.Render(m.detailViewport.View()))
		b.WriteString("\n")
	}

	if m.inputMode == ModeReply {
		b.WriteString(inputLabelStyle.Render("Reply to "+m.state.Selected) + "\n")
		b.WriteString(m.textInput.View())
		b.WriteString("\n" + helpStyle.Render("enter: send · esc: keep draft") + "\n")
	}

	if m.status != "" {
		style := statusStyle
		if m.err != nil {
			style = errorStyle
		}
		b.WriteString(style.Render(m.status) + "\n")
	}
	b.WriteString(helpStyle.Render(m.help.View(m.keys)))
	return b.String()
}

func (m *Model) renderTabs() string {
	tabs := make([]string, 0, len(ui.Boards))
	for _, k := range ui.Boards {
		label := fmt.Sprintf("%s %d", ui.BoardTitle(k), ui.BoardCount(m.state.Counts, k))
		if k == m.state.Board {
			tabs = append(tabs, activeTabStyle.Render(label))
		} else {
			tabs = append(tabs, tabStyle.Render(label))
		}
	}
	return strings.Join(tabs, " ")
}

func (m *Model) renderBoard() string {
	var b strings.Builder
	width := m.width - 30
	if width < 20 {
		width = 60
	}

	titles := ui.BucketTitles(m.state.Board)
	idx := 0
	for i, rows := range m.state.ActiveBuckets() {
		b.WriteString(bucketStyle.Render(fmt.Sprintf("%s (%d)", titles[i], len(rows))) + "\n")
		if len(rows) == 0 {
			b.WriteString(ui.TreeIndent + ui.RenderMuted("none") + "\n")
		}
		for _, t := range rows {
			line := ui.ThreadLine(t, width)
			marker := ui.TreeIndent
			if t.ThreadID == m.state.Selected {
				marker = ui.RenderAccent("▸ ")
			}
			if idx == m.cursor {
				line = cursorStyle.Render(line)
			}
			b.WriteString(marker + line + "\n")
			idx++
		}
	}
	if m.state.Loading {
		b.WriteString(titleStyle.Render("loading...") + "\n")
	}
	return b.String()
}
