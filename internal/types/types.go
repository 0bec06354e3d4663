// Package types defines the value objects exchanged with the forum backend.
package types

import (
	"strings"
	"time"
)

// Thread is one discussion unit tied to a ticket/run as returned by the
// search and queue endpoints. The derived flags (IsUnseen, IsUnanswered,
// LastActorType, LastEventSequence) are computed by the backend per viewer.
type Thread struct {
	ThreadID          string      `json:"thread_id" yaml:"thread_id"`
	Ticket            string      `json:"ticket" yaml:"ticket"`
	RunID             string      `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	AgentName         string      `json:"agent_name,omitempty" yaml:"agent_name,omitempty"`
	Title             string      `json:"title" yaml:"title"`
	State             ThreadState `json:"state" yaml:"state"`
	Priority          Priority    `json:"priority" yaml:"priority"`
	AssigneeName      string      `json:"assignee_name,omitempty" yaml:"assignee_name,omitempty"`
	PostsCount        int         `json:"posts_count" yaml:"posts_count"`
	OpenedAt          time.Time   `json:"opened_at" yaml:"opened_at"`
	UpdatedAt         time.Time   `json:"updated_at" yaml:"updated_at"`
	LastEventSequence int64       `json:"last_event_sequence,omitempty" yaml:"last_event_sequence,omitempty"`
	LastActorType     ActorType   `json:"last_actor_type,omitempty" yaml:"last_actor_type,omitempty"`
	IsUnseen          bool        `json:"is_unseen,omitempty" yaml:"is_unseen,omitempty"`
	IsUnanswered      bool        `json:"is_unanswered,omitempty" yaml:"is_unanswered,omitempty"`
}

// Post is a reply attached to a thread. EventID correlates it with exactly
// one Event in the thread's event log.
type Post struct {
	PostID     string    `json:"post_id" yaml:"post_id"`
	EventID    string    `json:"event_id" yaml:"event_id"`
	AuthorType ActorType `json:"author_type" yaml:"author_type"`
	AuthorName string    `json:"author_name,omitempty" yaml:"author_name,omitempty"`
	Body       string    `json:"body" yaml:"body"`
	CreatedAt  time.Time `json:"created_at" yaml:"created_at"`
}

// Envelope is the routing header of a forum event.
type Envelope struct {
	EventID    string    `json:"event_id" yaml:"event_id"`
	EventType  string    `json:"event_type" yaml:"event_type"`
	ThreadID   string    `json:"thread_id" yaml:"thread_id"`
	Ticket     string    `json:"ticket" yaml:"ticket"`
	RunID      string    `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	ActorType  ActorType `json:"actor_type,omitempty" yaml:"actor_type,omitempty"`
	ActorName  string    `json:"actor_name,omitempty" yaml:"actor_name,omitempty"`
	OccurredAt time.Time `json:"occurred_at" yaml:"occurred_at"`
}

// Event is one entry of a thread's event log. Sequence is strictly
// increasing and gapless per thread.
type Event struct {
	Sequence    int64    `json:"sequence" yaml:"sequence"`
	Envelope    Envelope `json:"envelope" yaml:"envelope"`
	PayloadJSON string   `json:"payload_json,omitempty" yaml:"payload_json,omitempty"`
}

// ThreadDetail is a thread together with its posts and events.
type ThreadDetail struct {
	Thread Thread  `json:"thread" yaml:"thread"`
	Posts  []Post  `json:"posts" yaml:"posts"`
	Events []Event `json:"events" yaml:"events"`
}

// ThreadState is the lifecycle state of a thread.
type ThreadState string

// Thread state constants
const (
	StateNew             ThreadState = "new"
	StateTriaged         ThreadState = "triaged"
	StateWaitingOperator ThreadState = "waiting_operator"
	StateWaitingHuman    ThreadState = "waiting_human"
	StateAnswered        ThreadState = "answered"
	StateClosed          ThreadState = "closed"
)

// IsValid checks if the state value is known.
func (s ThreadState) IsValid() bool {
	switch s.Normalize() {
	case StateNew, StateTriaged, StateWaitingOperator, StateWaitingHuman, StateAnswered, StateClosed:
		return true
	}
	return false
}

// Normalize lowercases and trims the state as received from the wire.
func (s ThreadState) Normalize() ThreadState {
	return ThreadState(strings.ToLower(strings.TrimSpace(string(s))))
}

// Is reports whether the normalized state equals one of the candidates.
func (s ThreadState) Is(candidates ...ThreadState) bool {
	n := s.Normalize()
	for _, c := range candidates {
		if n == c {
			return true
		}
	}
	return false
}

// Priority is the urgency of a thread.
type Priority string

// Priority constants
const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// IsValid checks if the priority value is known.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityUrgent, PriorityHigh, PriorityNormal, PriorityLow:
		return true
	}
	return false
}

// ActorType identifies who performed an action.
type ActorType string

// Actor type constants
const (
	ActorAgent    ActorType = "agent"
	ActorOperator ActorType = "operator"
	ActorHuman    ActorType = "human"
	ActorSystem   ActorType = "system"
)

// ViewerType identifies the kind of viewer for unseen/unanswered queues.
type ViewerType string

// Viewer type constants
const (
	ViewerHuman ViewerType = "human"
	ViewerAgent ViewerType = "agent"
)

// QueueType selects a backend-computed queue.
type QueueType string

// Queue type constants
const (
	QueueUnseen     QueueType = "unseen"
	QueueUnanswered QueueType = "unanswered"
)

// TopicMode controls how the board is grouped and post-filtered.
type TopicMode string

// Topic mode constants
const (
	TopicTicket TopicMode = "ticket"
	TopicRun    TopicMode = "run"
	TopicAgent  TopicMode = "agent"
)

// IsValid checks if the topic mode value is known.
func (m TopicMode) IsValid() bool {
	switch m {
	case TopicTicket, TopicRun, TopicAgent:
		return true
	}
	return false
}

// BoardKey names one of the three operator boards.
type BoardKey string

// Board constants
const (
	BoardInProgress        BoardKey = "in_progress"
	BoardNeedsMe           BoardKey = "needs_me"
	BoardRecentlyCompleted BoardKey = "recently_completed"
)

// Scope narrows every query of a reconciliation pass. Empty fields mean "all".
type Scope struct {
	Ticket string `json:"ticket,omitempty" yaml:"ticket,omitempty"`
	RunID  string `json:"run_id,omitempty" yaml:"run_id,omitempty"`
}

// IsGlobal reports whether the scope has no narrowing filters.
func (s Scope) IsGlobal() bool {
	return s.Ticket == "" && s.RunID == ""
}

// Filter is the set of user-controlled inputs that shape a reconciliation
// pass besides the scope.
type Filter struct {
	Query      string     `json:"query,omitempty" yaml:"query,omitempty"`
	Priority   Priority   `json:"priority,omitempty" yaml:"priority,omitempty"`
	ViewerType ViewerType `json:"viewer_type,omitempty" yaml:"viewer_type,omitempty"`
	ViewerID   string     `json:"viewer_id,omitempty" yaml:"viewer_id,omitempty"`
	TopicMode  TopicMode  `json:"topic_mode,omitempty" yaml:"topic_mode,omitempty"`
	Agent      string     `json:"agent,omitempty" yaml:"agent,omitempty"`
}
