package engine

import (
	"context"
	"strings"

	"github.com/kball/forumwatch/internal/debug"
	"github.com/kball/forumwatch/internal/forumapi"
	"github.com/kball/forumwatch/internal/timeline"
	"github.com/kball/forumwatch/internal/types"
)

// Select makes threadID the selected thread, loads its detail and marks it
// seen. An empty id clears the selection.
func (e *Engine) Select(ctx context.Context, threadID string) error {
	threadID = strings.TrimSpace(threadID)
	if threadID == "" {
		e.ClearSelection()
		return nil
	}

	e.mu.Lock()
	if e.state.Selected != threadID {
		e.state.Selected = threadID
		e.state.Detail = nil
		e.state.Timeline = nil
	}
	e.publishLocked()
	e.mu.Unlock()

	if err := e.RefreshDetail(ctx); err != nil {
		return err
	}
	e.markSelectedSeen(ctx)
	return nil
}

// ClearSelection drops the selection and its detail.
func (e *Engine) ClearSelection() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clearSelectionLocked()
	e.publishLocked()
}

func (e *Engine) clearSelectionLocked() {
	e.state.Selected = ""
	e.state.Detail = nil
	e.state.Timeline = nil
}

// RefreshDetail reloads the selected thread's detail and timeline. It is a
// no-op without a selection. The result is dropped if the selection changed
// while the request was in flight.
func (e *Engine) RefreshDetail(ctx context.Context) error {
	e.mu.Lock()
	threadID := e.state.Selected
	e.mu.Unlock()
	if threadID == "" {
		return nil
	}

	detail, err := e.backend.GetThread(ctx, threadID)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Selected != threadID {
		return nil
	}
	if err != nil {
		e.state.Banner = err.Error()
		e.publishLocked()
		return err
	}
	e.state.Detail = detail
	e.state.Timeline = timeline.Build(*detail)
	e.publishLocked()
	return nil
}

// markSelectedSeen records the selected thread as seen up to its latest
// event. Failures are logged and otherwise ignored.
func (e *Engine) markSelectedSeen(ctx context.Context) {
	e.mu.Lock()
	threadID := e.state.Selected
	viewerType := e.state.Filter.ViewerType
	viewerID := strings.TrimSpace(e.state.Filter.ViewerID)
	var seq int64
	if e.state.Detail != nil && e.state.Detail.Thread.ThreadID == threadID {
		seq = e.state.Detail.Thread.LastEventSequence
	}
	e.mu.Unlock()

	if threadID == "" || viewerType == "" || viewerID == "" {
		return
	}
	err := e.backend.MarkSeen(ctx, threadID, forumapi.SeenRequest{
		ViewerType:            viewerType,
		ViewerID:              viewerID,
		LastSeenEventSequence: seq,
	})
	if err != nil {
		debug.Logger().Debug().Err(err).Str("thread", threadID).Msg("engine: mark seen failed")
	}
}

// SelectedThread returns the bucketed row of the selection, if visible.
func (e *Engine) SelectedThread() (types.Thread, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Selected == "" {
		return types.Thread{}, false
	}
	return e.state.Buckets.Find(e.state.Selected)
}
