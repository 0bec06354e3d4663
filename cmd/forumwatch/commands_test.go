package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/kball/forumwatch/internal/engine"
	"github.com/kball/forumwatch/internal/forumtest"
	"github.com/kball/forumwatch/internal/types"
	"github.com/kball/forumwatch/internal/ui"
)

func newTestServer(t *testing.T) *forumtest.Server {
	t.Helper()
	srv := forumtest.NewServer()
	t.Cleanup(srv.Close)
	srv.AddThread(types.Thread{ThreadID: "th-1", Ticket: "T-1", Title: "Which region?", AgentName: "worker-1"})
	srv.AddThread(types.Thread{ThreadID: "th-2", Ticket: "T-1", Title: "Deploy now?", State: types.StateTriaged, AgentName: "worker-2"})
	srv.AddThread(types.Thread{ThreadID: "th-3", Ticket: "T-2", Title: "Done", State: types.StateClosed})
	return srv
}

func TestBoardJSON(t *testing.T) {
	srv := newTestServer(t)

	out, err := runCLI(t, "board", "--server", srv.URL, "--ticket", "T-1", "--json")
	require.NoError(t, err)

	var got boardOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "ticket:T-1", got.Label)
	assert.Equal(t, "T-1", got.Scope.Ticket)
	assert.Equal(t, types.BoardInProgress, got.Board)
	assert.Equal(t, 2, got.Counts.InProgress)
	require.Len(t, got.Buckets.InProgressNew, 1)
	assert.Equal(t, "th-1", got.Buckets.InProgressNew[0].ThreadID)
	assert.Equal(t, []string{"worker-1", "worker-2"}, got.AvailableAgents)

	searches := srv.RequestsTo(http.MethodGet, "/api/v1/forum/search")
	require.Len(t, searches, 2)
	for _, r := range searches {
		assert.Equal(t, "T-1", r.Query.Get("ticket"))
	}
	assert.Len(t, srv.RequestsTo(http.MethodGet, "/api/v1/forum/queues"), 2)
}

func TestBoardYAML(t *testing.T) {
	srv := newTestServer(t)

	out, err := runCLI(t, "board", "--server", srv.URL, "--format", "yaml", "--board", "recently_completed")
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	assert.Equal(t, "recently_completed", got["active_board"])
	assert.Contains(t, got, "buckets")
	assert.Contains(t, got, "counts")
}

func TestBoardText(t *testing.T) {
	srv := newTestServer(t)

	out, err := runCLI(t, "board", "--server", srv.URL, "--all")
	require.NoError(t, err)
	for _, want := range []string{"IN PROGRESS (2)", "NEEDS ME", "RECENTLY COMPLETED (1)", "th-1", "Which region?"} {
		assert.Contains(t, out, want)
	}
	for _, key := range ui.Boards {
		assert.Contains(t, out, strings.ToUpper(ui.BoardTitle(key)))
	}
}

func TestBoardRejectsUnknownBoard(t *testing.T) {
	srv := newTestServer(t)
	_, err := runCLI(t, "board", "--server", srv.URL, "--board", "backlog")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown board")
}

func TestBoardBackendFailure(t *testing.T) {
	srv := newTestServer(t)
	srv.Fail(http.MethodGet, "/api/v1/forum/queues", http.StatusServiceUnavailable, "unavailable", "queue store down")

	_, err := runCLI(t, "board", "--server", srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue store down")
}

func TestInvalidFlagValues(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"topic mode", []string{"board", "--topic-mode", "team"}, "--topic-mode"},
		{"viewer type", []string{"board", "--viewer-type", "robot"}, "--viewer-type"},
		{"priority", []string{"board", "--priority", "p0"}, "--priority"},
		{"server", []string{"board", "--server", "not a url"}, "--server"},
		{"format", []string{"board", "--format", "xml"}, "--format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestShowMarksSeen(t *testing.T) {
	srv := newTestServer(t)

	out, err := runCLI(t, "show", "th-1", "--server", srv.URL, "--json")
	require.NoError(t, err)

	var got showOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.NotNil(t, got.Detail)
	assert.Equal(t, "th-1", got.Detail.Thread.ThreadID)
	assert.Len(t, got.Timeline, 1)

	seen := srv.RequestsTo(http.MethodPost, "/api/v1/forum/threads/th-1/seen")
	require.Len(t, seen, 1)
	assert.Contains(t, string(seen[0].Body), `"viewer_id":"human:operator"`)
}

func TestShowText(t *testing.T) {
	srv := newTestServer(t)

	out, err := runCLI(t, "show", "th-2", "--server", srv.URL, "--no-pager")
	require.NoError(t, err)
	assert.Contains(t, out, "th-2")
	assert.Contains(t, out, "Deploy now?")
}

func TestShowMissingThread(t *testing.T) {
	srv := newTestServer(t)
	_, err := runCLI(t, "show", "th-404", "--server", srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "th-404")
}

func TestAskCreatesThread(t *testing.T) {
	srv := newTestServer(t)

	out, err := runCLI(t, "ask", "--server", srv.URL, "--ticket", "T-9",
		"--title", "Rollback?", "--body", "Error rate is up.", "--question-priority", "urgent", "--json")
	require.NoError(t, err)

	var created types.Thread
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	assert.Equal(t, "T-9", created.Ticket)
	assert.Equal(t, types.PriorityUrgent, created.Priority)

	creates := srv.RequestsTo(http.MethodPost, "/api/v1/forum/threads")
	require.Len(t, creates, 1)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(creates[0].Body, &body))
	assert.Equal(t, "Rollback?", body["title"])
	assert.Equal(t, "human", body["actor_type"])
	assert.Contains(t, body, "run_id")

	assert.NotEmpty(t, srv.RequestsTo(http.MethodPost, "/api/v1/forum/threads/"+created.ThreadID+"/seen"))
}

func TestAskValidation(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name string
		args []string
	}{
		{"missing ticket", []string{"ask", "--title", "x", "--body", "y"}},
		{"agent viewer", []string{"ask", "--ticket", "T-1", "--title", "x", "--body", "y", "--viewer-type", "agent"}},
		{"bad priority", []string{"ask", "--ticket", "T-1", "--title", "x", "--body", "y", "--question-priority", "p1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, append(tt.args, "--server", srv.URL)...)
			require.Error(t, err)
			assert.True(t, errors.Is(err, engine.ErrValidation), "got %v", err)
		})
	}
	assert.Empty(t, srv.RequestsTo(http.MethodPost, "/api/v1/forum/threads"))
}

func TestReplyPostsAndRefreshes(t *testing.T) {
	srv := newTestServer(t)

	out, err := runCLI(t, "reply", "th-2", "Ship", "it", "--server", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "Replied to th-2")

	thread, ok := srv.Thread("th-2")
	require.True(t, ok)
	assert.Equal(t, types.StateAnswered, thread.State)

	posts := srv.RequestsTo(http.MethodPost, "/api/v1/forum/threads/th-2/posts")
	require.Len(t, posts, 1)
	assert.Contains(t, string(posts[0].Body), `"body":"Ship it"`)
}

func TestReplyToClosedThreadFails(t *testing.T) {
	srv := newTestServer(t)

	_, err := runCLI(t, "reply", "th-3", "--body", "reopen?", "--server", srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "thread is closed")
}

func TestSeenReportsErrors(t *testing.T) {
	srv := newTestServer(t)

	out, err := runCLI(t, "seen", "th-1", "--server", srv.URL, "--sequence", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Marked th-1 seen")

	srv.Fail(http.MethodPost, "/api/v1/forum/threads/th-1/seen", http.StatusInternalServerError, "internal", "seen store down")
	_, err = runCLI(t, "seen", "th-1", "--server", srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "seen store down")
}

func TestRunsJSON(t *testing.T) {
	srv := newTestServer(t)
	srv.SetRuns(
		`{"run_id":"r-1","status":"running","tickets":["T-2"," T-1 "],"pending_guidance":[{"thread_id":"th-1","agent_name":"worker-1","workspace_name":"ws","question":"Which region?"}]}`,
		`{"RunID":"r-2","Tickets":["T-1"]}`,
		`{"status":"broken"}`,
	)

	out, err := runCLI(t, "runs", "--server", srv.URL, "--json")
	require.NoError(t, err)

	var got runsOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got.Runs, 2)
	assert.Equal(t, "unknown", got.Runs[1].Status)
	assert.Equal(t, []string{"T-1", "T-2"}, got.KnownTickets)

	out, err = runCLI(t, "runs", "--server", srv.URL, "--pending")
	require.NoError(t, err)
	assert.Contains(t, out, "r-1")
	assert.NotContains(t, out, "r-2")
}

func TestHealthStrict(t *testing.T) {
	srv := newTestServer(t)

	out, err := runCLI(t, "health", "--server", srv.URL, "--strict")
	require.NoError(t, err)
	assert.Contains(t, out, "healthy")

	srv.SetDebug(types.DebugSnapshot{
		Bus:    types.BusStatus{Running: true, Healthy: true},
		Outbox: types.OutboxStats{FailedCount: 2},
	})
	out, err = runCLI(t, "health", "--server", srv.URL, "--json", "--strict")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 failed message(s)")
	assert.Contains(t, out, `"failed_count": 2`)
}

func TestConfigSetGetList(t *testing.T) {
	out, err := runCLI(t, "config", "set", "viewer.id", "human:alice")
	require.NoError(t, err)
	assert.Contains(t, out, "Set viewer.id = human:alice")

	path := filepath.Join(os.Getenv("XDG_CONFIG_HOME"), "forumwatch", "config.yaml")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "human:alice")

	out, err = runCLI(t, "config", "get", "viewer.id")
	require.NoError(t, err)
	assert.Equal(t, "human:alice", strings.TrimSpace(out))

	out, err = runCLI(t, "config", "list")
	require.NoError(t, err)
	assert.Contains(t, out, path)
	assert.Contains(t, out, "stream.debounce")

	_, err = runCLI(t, "config", "set", "viewer.type", "robot")
	require.Error(t, err)
	_, err = runCLI(t, "config", "get", "nope")
	require.Error(t, err)

	require.NoError(t, os.Remove(path))
}

func TestVersion(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "forumwatch version "+Version)

	out, err = runCLI(t, "version", "--json")
	require.NoError(t, err)
	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, Version, got["version"])
}
