// Package timeline merges a thread's event log and post log into one
// display-ready sequence.
package timeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/kball/forumwatch/internal/types"
)

// Placeholder is shown when neither the event nor its post names an actor.
const Placeholder = "-"

// Row is one line of a thread timeline.
type Row struct {
	ID         string    `json:"id" yaml:"id"`
	Sequence   int64     `json:"sequence" yaml:"sequence"`
	EventType  string    `json:"event_type" yaml:"event_type"`
	ActorType  string    `json:"actor_type" yaml:"actor_type"`
	ActorName  string    `json:"actor_name" yaml:"actor_name"`
	OccurredAt time.Time `json:"occurred_at" yaml:"occurred_at"`
	Body       string    `json:"body" yaml:"body"`
	// FromPost is true when Body came from a correlated post rather than
	// the raw event payload.
	FromPost bool `json:"from_post" yaml:"from_post"`
}

// Build returns the events of detail ordered by sequence, each annotated
// with its correlated post (if any). The input is not modified.
func Build(detail types.ThreadDetail) []Row {
	postsByEvent := make(map[string]types.Post, len(detail.Posts))
	for _, post := range detail.Posts {
		if post.EventID != "" {
			postsByEvent[post.EventID] = post
		}
	}

	events := make([]types.Event, len(detail.Events))
	copy(events, detail.Events)
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Sequence < events[j].Sequence
	})

	rows := make([]Row, 0, len(events))
	for _, event := range events {
		env := event.Envelope
		post, hasPost := postsByEvent[env.EventID]

		row := Row{
			ID:         fmt.Sprintf("%d-%s", event.Sequence, env.EventID),
			Sequence:   event.Sequence,
			EventType:  env.EventType,
			ActorType:  firstNonEmpty(string(env.ActorType), string(post.AuthorType), Placeholder),
			ActorName:  firstNonEmpty(env.ActorName, post.AuthorName, Placeholder),
			OccurredAt: env.OccurredAt,
		}
		if hasPost && post.Body != "" {
			row.Body = post.Body
			row.FromPost = true
		} else {
			row.Body = SummarizePayload(event.PayloadJSON)
		}
		rows = append(rows, row)
	}
	return rows
}

// SummarizePayload renders a raw event payload as a single line. JSON
// objects and arrays are re-serialized compactly, JSON scalars become their
// plain text, and anything unparseable is returned verbatim.
func SummarizePayload(raw string) string {
	if raw == "" {
		return ""
	}
	data := []byte(raw)
	if !json.Valid(data) {
		return raw
	}

	trimmed := bytes.TrimSpace(data)
	switch trimmed[0] {
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, trimmed); err != nil {
			return raw
		}
		return buf.String()
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return raw
	}
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case json.Number:
		if f, err := val.Float64(); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return val.String()
	}
	return raw
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
