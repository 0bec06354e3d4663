package forumapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/kball/forumwatch/internal/types"
)

// Frame types sent on the push stream.
const (
	FrameTypeEvents    = "forum.events"
	FrameTypeHeartbeat = "heartbeat"
)

// ErrStreamClosed is returned by Stream.Read after Close.
var ErrStreamClosed = errors.New("forumapi: stream closed")

// Frame is one decoded push frame with a non-empty event list.
type Frame struct {
	Type       string            `json:"type"`
	Events     []json.RawMessage `json:"events"`
	NextCursor int64             `json:"next_cursor,omitempty"`
	SentAt     time.Time         `json:"sent_at,omitempty"`
}

// DecodeEvents decodes the frame's events. Callers that only need to know
// something changed can skip this.
func (f Frame) DecodeEvents() ([]types.Event, error) {
	out := make([]types.Event, 0, len(f.Events))
	for _, raw := range f.Events {
		var ev types.Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("forumapi: decode stream event: %w", err)
		}
		out = append(out, ev)
	}
	return out, nil
}

// ParseFrame decodes a push frame. It reports false for anything that is
// not a forum.events frame carrying a non-empty events array; such frames
// are not errors and should simply be ignored.
func ParseFrame(data []byte) (Frame, bool) {
	var probe struct {
		Type       string          `json:"type"`
		Events     json.RawMessage `json:"events"`
		NextCursor json.RawMessage `json:"next_cursor"`
		SentAt     json.RawMessage `json:"sent_at"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return Frame{}, false
	}
	if probe.Type != FrameTypeEvents {
		return Frame{}, false
	}
	trimmed := bytes.TrimSpace(probe.Events)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return Frame{}, false
	}
	var events []json.RawMessage
	if err := json.Unmarshal(trimmed, &events); err != nil || len(events) == 0 {
		return Frame{}, false
	}
	frame := Frame{Type: probe.Type, Events: events}
	// The cursor and timestamp are informational only.
	_ = json.Unmarshal(probe.NextCursor, &frame.NextCursor)
	_ = json.Unmarshal(probe.SentAt, &frame.SentAt)
	return frame, true
}

// StreamURL returns the WebSocket URL of the push stream for a scope.
func (c *Client) StreamURL(scope types.Scope) string {
	u := c.baseURL
	u = strings.Replace(u, "https://", "wss://", 1)
	u = strings.Replace(u, "http://", "ws://", 1)
	u += "/api/v1/forum/stream"
	if q := scopeQuery(scope); len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

// Stream is one open push subscription.
type Stream struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// Subscribe opens the push stream for scope. The connection is closed when
// ctx is cancelled or Close is called, whichever comes first.
func (c *Client) Subscribe(ctx context.Context, scope types.Scope) (*Stream, error) {
	target := c.StreamURL(scope)
	if _, err := url.Parse(target); err != nil {
		return nil, fmt.Errorf("forumapi: parse ws url: %w", err)
	}

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = c.httpClient.Timeout

	header := http.Header{}
	header.Set("X-Request-ID", uuid.NewString())
	if c.userAgent != "" {
		header.Set("User-Agent", c.userAgent)
	}

	conn, _, err := dialer.DialContext(ctx, target, header)
	if err != nil {
		return nil, fmt.Errorf("forumapi: ws dial: %w", err)
	}

	s := &Stream{conn: conn}
	go func() {
		<-ctx.Done()
		s.Close()
	}()
	return s, nil
}

// Read blocks until the next raw frame arrives.
func (s *Stream) Read() ([]byte, error) {
	s.mu.Lock()
	conn, closed := s.conn, s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrStreamClosed
	}

	_, data, err := conn.ReadMessage()
	if err != nil {
		s.mu.Lock()
		closed = s.closed
		s.mu.Unlock()
		if closed {
			return nil, ErrStreamClosed
		}
		return nil, fmt.Errorf("forumapi: ws read: %w", err)
	}
	return data, nil
}

// Close shuts the stream down. Safe to call multiple times.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close()
}
