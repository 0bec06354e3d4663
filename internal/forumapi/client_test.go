package forumapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kball/forumwatch/internal/types"
)

func TestNewClient(t *testing.T) {
	c := NewClient("http://127.0.0.1:3001/")
	if c.baseURL != "http://127.0.0.1:3001" {
		t.Errorf("baseURL = %q, want trailing slash stripped", c.baseURL)
	}
	if c.httpClient.Timeout != 10*time.Second {
		t.Errorf("timeout = %v, want 10s", c.httpClient.Timeout)
	}

	c = NewClient("http://x", WithTimeout(2*time.Second), WithUserAgent("test"))
	assert.Equal(t, 2*time.Second, c.httpClient.Timeout)
	assert.Equal(t, "test", c.userAgent)
}

func TestSearchThreadsQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/forum/search", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "T-1", q.Get("ticket"))
		assert.Equal(t, "run-1", q.Get("run_id"))
		assert.Equal(t, "closed", q.Get("state"))
		assert.Equal(t, "deploy", q.Get("query"))
		assert.Equal(t, "high", q.Get("priority"))
		assert.Equal(t, "human", q.Get("viewer_type"))
		assert.Equal(t, "human:alice", q.Get("viewer_id"))
		assert.Equal(t, "300", q.Get("limit"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

		json.NewEncoder(w).Encode(map[string]any{
			"threads": []types.Thread{{ThreadID: "fthr-1", State: types.StateClosed}},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	rows, err := c.SearchThreads(context.Background(), SearchParams{
		Scope:      types.Scope{Ticket: "T-1", RunID: "run-1"},
		State:      types.StateClosed,
		Query:      "deploy",
		Priority:   types.PriorityHigh,
		ViewerType: types.ViewerHuman,
		ViewerID:   "human:alice",
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "fthr-1", rows[0].ThreadID)
}

func TestSearchThreadsOmitsEmptyParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		for _, key := range []string{"ticket", "run_id", "state", "query", "priority", "viewer_type", "viewer_id"} {
			if _, ok := q[key]; ok {
				t.Errorf("unexpected %s param in %s", key, r.URL.RawQuery)
			}
		}
		assert.Equal(t, "25", q.Get("limit"))
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	rows, err := NewClient(srv.URL).SearchThreads(context.Background(), SearchParams{Limit: 25})
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestQueueThreads(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/forum/queues", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "unanswered", q.Get("type"))
		assert.Equal(t, "agent", q.Get("viewer_type"))
		assert.Empty(t, q.Get("query"), "queues are never text-filtered server-side")
		w.Write([]byte(`{"threads":[{"thread_id":"q1","state":"waiting_human","is_unanswered":true}]}`))
	}))
	defer srv.Close()

	rows, err := NewClient(srv.URL).QueueThreads(context.Background(), QueueParams{
		Type:       types.QueueUnanswered,
		ViewerType: types.ViewerAgent,
		ViewerID:   "agent:a:b",
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].IsUnanswered)
	assert.Equal(t, types.StateWaitingHuman, rows[0].State)
}

func TestGetThread(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/forum/threads/fthr 1", r.URL.Path)
		w.Write([]byte(`{
			"thread": {"thread_id": "fthr 1", "last_event_sequence": 7},
			"posts": [{"post_id": "p1", "event_id": "e1", "body": "hi"}],
			"events": [{"sequence": 7, "envelope": {"event_id": "e1", "event_type": "forum.post.added"}}]
		}`))
	}))
	defer srv.Close()

	detail, err := NewClient(srv.URL).GetThread(context.Background(), "fthr 1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), detail.Thread.LastEventSequence)
	require.Len(t, detail.Posts, 1)
	require.Len(t, detail.Events, 1)
	assert.Equal(t, "e1", detail.Events[0].Envelope.EventID)
}

func TestCommands(t *testing.T) {
	type call struct {
		path string
		body map[string]any
	}
	var calls []call

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		data, _ := io.ReadAll(r.Body)
		var body map[string]any
		json.Unmarshal(data, &body)
		calls = append(calls, call{path: r.URL.Path, body: body})
		w.Write([]byte(`{"thread":{"thread_id":"fthr-9","state":"new"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	ctx := context.Background()

	created, err := c.CreateThread(ctx, CreateThreadRequest{
		Ticket: "T-1", Title: "x", Body: "y", Priority: types.PriorityNormal,
		ActorType: types.ActorHuman, ActorName: "human:operator",
	})
	require.NoError(t, err)
	assert.Equal(t, "fthr-9", created.ThreadID)

	_, err = c.PostReply(ctx, "fthr-9", ReplyRequest{Body: "ok", ActorType: types.ActorHuman, ActorName: "human:operator"})
	require.NoError(t, err)

	require.NoError(t, c.MarkSeen(ctx, "fthr-9", SeenRequest{ViewerType: types.ViewerHuman, ViewerID: "human:operator", LastSeenEventSequence: 4}))

	require.Len(t, calls, 3)
	assert.Equal(t, "/api/v1/forum/threads", calls[0].path)
	assert.Equal(t, map[string]any{
		"ticket": "T-1", "run_id": "", "title": "x", "body": "y", "priority": "normal",
		"actor_type": "human", "actor_name": "human:operator",
	}, calls[0].body)
	assert.Equal(t, "/api/v1/forum/threads/fthr-9/posts", calls[1].path)
	assert.Equal(t, "ok", calls[1].body["body"])
	assert.Equal(t, "/api/v1/forum/threads/fthr-9/seen", calls[2].path)
	assert.Equal(t, float64(4), calls[2].body["last_seen_event_sequence"])
}

func TestDebugSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/forum/debug", r.URL.Path)
		assert.Equal(t, "40", r.URL.Query().Get("limit"))
		assert.Equal(t, "T-1", r.URL.Query().Get("ticket"))
		w.Write([]byte(`{"debug":{"outbox":{"pending_count":51,"failed_count":0},"bus":{"healthy":true,"running":true}}}`))
	}))
	defer srv.Close()

	snap, err := NewClient(srv.URL).DebugSnapshot(context.Background(), types.Scope{Ticket: "T-1"}, 40)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 51, snap.Outbox.PendingCount)
	assert.True(t, snap.Bus.Healthy)
}

func TestAPIError(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
		code    string
	}{
		{
			name:    "structured error",
			status:  http.StatusNotFound,
			body:    `{"error":{"code":"forum_thread_not_found","message":"forum thread not found"}}`,
			wantMsg: "forumapi: forum_thread_not_found (404): forum thread not found",
			code:    "forum_thread_not_found",
		},
		{
			name:    "plain text",
			status:  http.StatusBadGateway,
			body:    "upstream down\n",
			wantMsg: "forumapi: HTTP 502: upstream down",
		},
		{
			name:    "redirect is not success",
			status:  http.StatusNotModified,
			body:    "",
			wantMsg: "forumapi: HTTP 304",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL).GetThread(context.Background(), "fthr-1")
			require.Error(t, err)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr), "got %T", err)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.code, apiErr.Code)
			assert.Equal(t, tt.wantMsg, err.Error())
			assert.Equal(t, tt.status == http.StatusNotFound, IsNotFound(err))
		})
	}
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := NewClient(srv.URL).SearchThreads(context.Background(), SearchParams{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "forumapi: GET /api/v1/forum/search")
}
