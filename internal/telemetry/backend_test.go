package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kball/forumwatch/internal/forumapi"
	"github.com/kball/forumwatch/internal/types"
)

type stubBackend struct {
	forumapi.Backend
	searchErr error
	calls     []string
}

func (s *stubBackend) SearchThreads(ctx context.Context, p forumapi.SearchParams) ([]types.Thread, error) {
	s.calls = append(s.calls, "search:"+p.Scope.Ticket)
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	return []types.Thread{{ThreadID: "a"}, {ThreadID: "b"}}, nil
}

func (s *stubBackend) MarkSeen(ctx context.Context, threadID string, req forumapi.SeenRequest) error {
	s.calls = append(s.calls, "seen:"+threadID)
	return nil
}

func TestWrapBackendDisabledIsIdentity(t *testing.T) {
	t.Setenv("FORUMWATCH_OTEL_ENABLED", "")
	inner := &stubBackend{}
	assert.Same(t, inner, WrapBackend(inner))
}

func TestWrapBackendEnabledDelegates(t *testing.T) {
	t.Setenv("FORUMWATCH_OTEL_ENABLED", "true")
	require.NoError(t, Init(context.Background(), "forumwatch-test", "dev"))
	t.Cleanup(func() { Shutdown(context.Background()) })

	inner := &stubBackend{}
	wrapped := WrapBackend(inner)
	_, isInstrumented := wrapped.(*InstrumentedBackend)
	require.True(t, isInstrumented)

	rows, err := wrapped.SearchThreads(context.Background(), forumapi.SearchParams{Scope: types.Scope{Ticket: "T-1"}})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	require.NoError(t, wrapped.MarkSeen(context.Background(), "a", forumapi.SeenRequest{}))

	inner.searchErr = errors.New("boom")
	_, err = wrapped.SearchThreads(context.Background(), forumapi.SearchParams{})
	assert.EqualError(t, err, "boom")

	assert.Equal(t, []string{"search:T-1", "seen:a", "search:"}, inner.calls)
}
