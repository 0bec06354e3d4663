package forumapi

import (
	"context"
	"net/url"
	"strconv"

	"github.com/kball/forumwatch/internal/types"
)

// SearchParams are the filters of GET /api/v1/forum/search.
type SearchParams struct {
	Scope      types.Scope
	State      types.ThreadState
	Query      string
	Priority   types.Priority
	ViewerType types.ViewerType
	ViewerID   string
	Limit      int
}

// QueueParams are the filters of GET /api/v1/forum/queues.
type QueueParams struct {
	Scope      types.Scope
	Type       types.QueueType
	Priority   types.Priority
	ViewerType types.ViewerType
	ViewerID   string
	Limit      int
}

// CreateThreadRequest is the body of POST /api/v1/forum/threads.
type CreateThreadRequest struct {
	Ticket    string          `json:"ticket"`
	RunID     string          `json:"run_id"`
	Title     string          `json:"title"`
	Body      string          `json:"body"`
	Priority  types.Priority  `json:"priority"`
	ActorType types.ActorType `json:"actor_type"`
	ActorName string          `json:"actor_name"`
}

// ReplyRequest is the body of POST /api/v1/forum/threads/{id}/posts.
type ReplyRequest struct {
	Body      string          `json:"body"`
	ActorType types.ActorType `json:"actor_type"`
	ActorName string          `json:"actor_name"`
}

// SeenRequest is the body of POST /api/v1/forum/threads/{id}/seen.
type SeenRequest struct {
	ViewerType            types.ViewerType `json:"viewer_type"`
	ViewerID              string           `json:"viewer_id"`
	LastSeenEventSequence int64            `json:"last_seen_event_sequence"`
}

type threadsResponse struct {
	Threads []types.Thread `json:"threads"`
}

type threadResponse struct {
	Thread *types.Thread `json:"thread"`
}

type debugResponse struct {
	Debug *types.DebugSnapshot `json:"debug"`
}

func scopeQuery(scope types.Scope) url.Values {
	q := url.Values{}
	setIf(q, "ticket", scope.Ticket)
	setIf(q, "run_id", scope.RunID)
	return q
}

func setIf(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}

func limitOrDefault(limit int) string {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return strconv.Itoa(limit)
}

// SearchThreads runs a general thread search.
func (c *Client) SearchThreads(ctx context.Context, p SearchParams) ([]types.Thread, error) {
	q := scopeQuery(p.Scope)
	setIf(q, "state", string(p.State))
	setIf(q, "query", p.Query)
	setIf(q, "priority", string(p.Priority))
	setIf(q, "viewer_type", string(p.ViewerType))
	setIf(q, "viewer_id", p.ViewerID)
	q.Set("limit", limitOrDefault(p.Limit))

	var resp threadsResponse
	if err := c.getJSON(ctx, "/api/v1/forum/search", q, &resp); err != nil {
		return nil, err
	}
	return nonNilThreads(resp.Threads), nil
}

// QueueThreads fetches a backend-computed viewer queue.
func (c *Client) QueueThreads(ctx context.Context, p QueueParams) ([]types.Thread, error) {
	q := scopeQuery(p.Scope)
	q.Set("type", string(p.Type))
	setIf(q, "priority", string(p.Priority))
	setIf(q, "viewer_type", string(p.ViewerType))
	setIf(q, "viewer_id", p.ViewerID)
	q.Set("limit", limitOrDefault(p.Limit))

	var resp threadsResponse
	if err := c.getJSON(ctx, "/api/v1/forum/queues", q, &resp); err != nil {
		return nil, err
	}
	return nonNilThreads(resp.Threads), nil
}

// GetThread returns a thread with its posts and events.
func (c *Client) GetThread(ctx context.Context, threadID string) (*types.ThreadDetail, error) {
	var detail types.ThreadDetail
	if err := c.getJSON(ctx, "/api/v1/forum/threads/"+url.PathEscape(threadID), nil, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// CreateThread opens a new thread and returns it.
func (c *Client) CreateThread(ctx context.Context, req CreateThreadRequest) (*types.Thread, error) {
	var resp threadResponse
	if err := c.postJSON(ctx, "/api/v1/forum/threads", req, &resp); err != nil {
		return nil, err
	}
	if resp.Thread == nil {
		return &types.Thread{}, nil
	}
	return resp.Thread, nil
}

// PostReply appends a post to a thread and returns the updated thread.
func (c *Client) PostReply(ctx context.Context, threadID string, req ReplyRequest) (*types.Thread, error) {
	var resp threadResponse
	path := "/api/v1/forum/threads/" + url.PathEscape(threadID) + "/posts"
	if err := c.postJSON(ctx, path, req, &resp); err != nil {
		return nil, err
	}
	if resp.Thread == nil {
		return &types.Thread{}, nil
	}
	return resp.Thread, nil
}

// MarkSeen records that the viewer has seen a thread up to a sequence.
func (c *Client) MarkSeen(ctx context.Context, threadID string, req SeenRequest) error {
	path := "/api/v1/forum/threads/" + url.PathEscape(threadID) + "/seen"
	return c.postJSON(ctx, path, req, nil)
}

// DebugSnapshot fetches the bus/outbox health readout for a scope.
func (c *Client) DebugSnapshot(ctx context.Context, scope types.Scope, limit int) (*types.DebugSnapshot, error) {
	q := scopeQuery(scope)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var resp debugResponse
	if err := c.getJSON(ctx, "/api/v1/forum/debug", q, &resp); err != nil {
		return nil, err
	}
	return resp.Debug, nil
}

func nonNilThreads(rows []types.Thread) []types.Thread {
	if rows == nil {
		return []types.Thread{}
	}
	return rows
}
