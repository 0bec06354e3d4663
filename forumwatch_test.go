package forumwatch_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kball/forumwatch"
	"github.com/kball/forumwatch/internal/forumtest"
)

func TestNewEngine(t *testing.T) {
	srv := forumtest.NewServer()
	defer srv.Close()
	srv.AddThread(forumwatch.Thread{ThreadID: "th-1", Ticket: "T-1", Title: "hello"})

	e := forumwatch.NewEngine(forumwatch.Options{
		Backend:       forumwatch.NewClient(srv.URL),
		DebugInterval: time.Hour,
		Ticket:        "T-1",
		Filter:        forumwatch.Filter{ViewerType: "human", ViewerID: "human:operator"},
	})
	defer e.Close()

	require.NoError(t, e.Start(context.Background()))
	require.Eventually(t, func() bool { return srv.StreamCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	s := e.State()
	assert.Equal(t, forumwatch.BoardInProgress, s.Board)
	require.Len(t, s.Buckets.InProgressNew, 1)
	assert.Equal(t, "th-1", s.Buckets.InProgressNew[0].ThreadID)
}

func TestValidationSentinel(t *testing.T) {
	e := forumwatch.NewEngine(forumwatch.Options{Backend: forumwatch.NewClient("http://127.0.0.1:1"), DebugInterval: -1})
	defer e.Close()
	assert.ErrorIs(t, e.ReplyReady(), forumwatch.ErrValidation)
}
