package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kball/forumwatch/internal/forumapi"
	"github.com/kball/forumwatch/internal/types"
)

// ErrValidation marks a command rejected before anything was sent.
var ErrValidation = errors.New("validation failed")

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// SetCompose replaces the unsent input. An empty priority means normal.
func (e *Engine) SetCompose(c Compose) {
	if c.Priority == "" {
		c.Priority = types.PriorityNormal
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Compose = c
	e.publishLocked()
}

// CreateReady reports why a new question cannot be submitted, or nil.
func (e *Engine) CreateReady() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return createReadyLocked(e.state)
}

func createReadyLocked(s State) error {
	switch {
	case s.Filter.ViewerType != types.ViewerHuman:
		return invalid("only human viewers can ask questions")
	case strings.TrimSpace(s.Compose.QuestionTicket) == "":
		return invalid("ticket is required")
	case strings.TrimSpace(s.Filter.ViewerID) == "":
		return invalid("viewer id is required")
	case strings.TrimSpace(s.Compose.Title) == "":
		return invalid("title is required")
	case strings.TrimSpace(s.Compose.Body) == "":
		return invalid("body is required")
	}
	if p := s.Compose.Priority; p != "" && !p.IsValid() {
		return invalid("unknown priority %q", p)
	}
	return nil
}

// CreateThread submits the composed question. On failure the compose input
// is kept and the banner set. On success the board moves to the question's
// ticket, the new thread is selected, loaded and marked seen.
func (e *Engine) CreateThread(ctx context.Context) (*types.Thread, error) {
	e.mu.Lock()
	if err := createReadyLocked(e.state); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	c := e.state.Compose
	priority := c.Priority
	if priority == "" {
		priority = types.PriorityNormal
	}
	req := forumapi.CreateThreadRequest{
		Ticket:    strings.TrimSpace(c.QuestionTicket),
		RunID:     e.state.Run,
		Title:     strings.TrimSpace(c.Title),
		Body:      strings.TrimSpace(c.Body),
		Priority:  priority,
		ActorType: types.ActorType(e.state.Filter.ViewerType),
		ActorName: strings.TrimSpace(e.state.Filter.ViewerID),
	}
	run := e.state.Run
	e.mu.Unlock()

	created, err := e.backend.CreateThread(ctx, req)
	if err != nil {
		e.setBanner(err.Error())
		return nil, err
	}

	e.mu.Lock()
	e.state.Compose.Title = ""
	e.state.Compose.Body = ""
	e.state.Compose.Priority = types.PriorityNormal
	e.state.Board = types.BoardInProgress
	e.mu.Unlock()

	e.lifecycle.Lock()
	e.applyScope(req.Ticket, run)
	e.lifecycle.Unlock()

	passErr := e.Reconcile(ctx)
	var selectErr error
	if created.ThreadID != "" {
		selectErr = e.Select(ctx, created.ThreadID)
	}
	debugErr := e.RefreshDebug(ctx)
	return created, errors.Join(passErr, selectErr, debugErr)
}

// ReplyReady reports why a reply cannot be submitted, or nil.
func (e *Engine) ReplyReady() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return replyReadyLocked(e.state)
}

func replyReadyLocked(s State) error {
	switch {
	case s.Selected == "":
		return invalid("no thread selected")
	case strings.TrimSpace(s.Compose.Reply) == "":
		return invalid("reply body is required")
	}
	return nil
}

// Reply posts the composed reply to the selected thread. The reply text is
// kept on failure.
func (e *Engine) Reply(ctx context.Context) error {
	e.mu.Lock()
	if err := replyReadyLocked(e.state); err != nil {
		e.mu.Unlock()
		return err
	}
	threadID := e.state.Selected
	req := forumapi.ReplyRequest{
		Body:      strings.TrimSpace(e.state.Compose.Reply),
		ActorType: types.ActorType(e.state.Filter.ViewerType),
		ActorName: strings.TrimSpace(e.state.Filter.ViewerID),
	}
	e.mu.Unlock()

	if _, err := e.backend.PostReply(ctx, threadID, req); err != nil {
		e.setBanner(err.Error())
		return err
	}

	e.mu.Lock()
	e.state.Compose.Reply = ""
	e.publishLocked()
	e.mu.Unlock()

	passErr := e.Reconcile(ctx)
	detailErr := e.RefreshDetail(ctx)
	if detailErr == nil {
		e.markSelectedSeen(ctx)
	}
	return errors.Join(passErr, detailErr)
}
