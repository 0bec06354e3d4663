package engine

import (
	"time"

	"github.com/kball/forumwatch/internal/board"
	"github.com/kball/forumwatch/internal/timeline"
	"github.com/kball/forumwatch/internal/types"
)

// StreamUnavailableNotice is the sticky advisory shown once the push
// channel has failed for the current scope.
const StreamUnavailableNotice = "WebSocket stream unavailable; using pull refresh only."

// Compose holds the operator's unsent input. It survives failed submissions.
type Compose struct {
	QuestionTicket string         `json:"question_ticket"`
	Title          string         `json:"title"`
	Body           string         `json:"body"`
	Priority       types.Priority `json:"priority"`
	Reply          string         `json:"reply"`
}

// State is an immutable snapshot of everything the engine owns. Slices are
// shared between snapshots and must not be modified by readers.
type State struct {
	Ticket string         `json:"ticket"`
	Run    string         `json:"run"`
	Scope  types.Scope    `json:"scope"`
	Filter types.Filter   `json:"filter"`
	Label  string         `json:"scope_label"`
	Board  types.BoardKey `json:"active_board"`

	Buckets         board.Buckets `json:"buckets"`
	Counts          board.Counts  `json:"counts"`
	AvailableAgents []string      `json:"available_agents"`

	Selected string              `json:"selected_thread_id,omitempty"`
	Detail   *types.ThreadDetail `json:"detail,omitempty"`
	Timeline []timeline.Row      `json:"timeline,omitempty"`

	Runs         []types.RunSnapshot  `json:"runs"`
	KnownTickets []string             `json:"known_tickets"`
	Debug        *types.DebugSnapshot `json:"debug,omitempty"`
	Warning      string               `json:"warning,omitempty"`

	Compose Compose `json:"compose"`

	// Banner is the last request failure; a successful pass clears it.
	Banner string `json:"banner,omitempty"`
	// Notice is sticky for the lifetime of a scope.
	Notice string `json:"notice,omitempty"`

	Loading     bool      `json:"loading"`
	PassID      uint64    `json:"pass_id"`
	LastRefresh time.Time `json:"last_refresh"`
}

// ActiveBuckets returns the buckets of the active board in display order.
func (s State) ActiveBuckets() [][]types.Thread {
	return s.Buckets.Board(s.Board)
}
