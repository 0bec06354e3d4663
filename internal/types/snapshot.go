package types

import "time"

// RunSnapshot is the normalized view of one orchestrator run.
type RunSnapshot struct {
	RunID           string            `json:"run_id" yaml:"run_id"`
	Status          string            `json:"status" yaml:"status"`
	Tickets         []string          `json:"tickets" yaml:"tickets"`
	PendingGuidance []PendingGuidance `json:"pending_guidance" yaml:"pending_guidance"`
}

// PendingGuidance is a question an agent is blocked on within a run.
type PendingGuidance struct {
	ThreadID      string `json:"thread_id" yaml:"thread_id"`
	AgentName     string `json:"agent_name" yaml:"agent_name"`
	WorkspaceName string `json:"workspace_name" yaml:"workspace_name"`
	Question      string `json:"question" yaml:"question"`
}

// DebugSnapshot is a point-in-time health readout of the forum bus and
// outbox. It is display-only and never reconciled against anything.
type DebugSnapshot struct {
	GeneratedAt    time.Time       `json:"generated_at" yaml:"generated_at"`
	Ticket         string          `json:"ticket,omitempty" yaml:"ticket,omitempty"`
	RunID          string          `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Outbox         OutboxStats     `json:"outbox" yaml:"outbox"`
	OutboxMessages []OutboxMessage `json:"outbox_messages" yaml:"outbox_messages"`
	Events         []Event         `json:"events" yaml:"-"`
	Bus            BusStatus       `json:"bus" yaml:"bus"`
}

// OutboxStats summarizes the backend's durable outbox.
type OutboxStats struct {
	PendingCount            int   `json:"pending_count" yaml:"pending_count"`
	ProcessingCount         int   `json:"processing_count" yaml:"processing_count"`
	FailedCount             int   `json:"failed_count" yaml:"failed_count"`
	OldestPendingAgeSeconds int64 `json:"oldest_pending_age_seconds" yaml:"oldest_pending_age_seconds"`
}

// OutboxMessage is one not-yet-delivered (or failed) outbox entry.
type OutboxMessage struct {
	MessageID    string    `json:"message_id" yaml:"message_id"`
	Topic        string    `json:"topic" yaml:"topic"`
	Status       string    `json:"status" yaml:"status"`
	AttemptCount int       `json:"attempt_count" yaml:"attempt_count"`
	LastError    string    `json:"last_error,omitempty" yaml:"last_error,omitempty"`
	UpdatedAt    time.Time `json:"updated_at" yaml:"updated_at"`
}

// BusStatus describes the event bus connection.
type BusStatus struct {
	Running       bool       `json:"running" yaml:"running"`
	Healthy       bool       `json:"healthy" yaml:"healthy"`
	HealthError   string     `json:"health_error,omitempty" yaml:"health_error,omitempty"`
	StreamName    string     `json:"stream_name" yaml:"stream_name"`
	ConsumerGroup string     `json:"consumer_group" yaml:"consumer_group"`
	ConsumerName  string     `json:"consumer_name" yaml:"consumer_name"`
	Topics        []TopicLag `json:"topics" yaml:"topics"`
}

// TopicLag is the per-topic backlog of the bus.
type TopicLag struct {
	Topic                string `json:"topic" yaml:"topic"`
	Stream               string `json:"stream" yaml:"stream"`
	HandlerRegistered    bool   `json:"handler_registered" yaml:"handler_registered"`
	Subscribed           bool   `json:"subscribed" yaml:"subscribed"`
	StreamExists         bool   `json:"stream_exists" yaml:"stream_exists"`
	StreamLength         int64  `json:"stream_length" yaml:"stream_length"`
	ConsumerGroupPresent bool   `json:"consumer_group_present" yaml:"consumer_group_present"`
	ConsumerGroupPending int64  `json:"consumer_group_pending" yaml:"consumer_group_pending"`
	ConsumerGroupLag     int64  `json:"consumer_group_lag" yaml:"consumer_group_lag"`
	TopicError           string `json:"topic_error,omitempty" yaml:"topic_error,omitempty"`
}
