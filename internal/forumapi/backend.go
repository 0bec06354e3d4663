package forumapi

import (
	"context"

	"github.com/kball/forumwatch/internal/types"
)

// Backend is the query/command surface of the forum backend. *Client
// implements it; tests and instrumentation wrap or replace it.
type Backend interface {
	SearchThreads(ctx context.Context, p SearchParams) ([]types.Thread, error)
	QueueThreads(ctx context.Context, p QueueParams) ([]types.Thread, error)
	GetThread(ctx context.Context, threadID string) (*types.ThreadDetail, error)
	CreateThread(ctx context.Context, req CreateThreadRequest) (*types.Thread, error)
	PostReply(ctx context.Context, threadID string, req ReplyRequest) (*types.Thread, error)
	MarkSeen(ctx context.Context, threadID string, req SeenRequest) error
	DebugSnapshot(ctx context.Context, scope types.Scope, limit int) (*types.DebugSnapshot, error)
	ListRuns(ctx context.Context) ([]types.RunSnapshot, error)
}

var _ Backend = (*Client)(nil)
