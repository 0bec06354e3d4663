// Package forumwatch provides a minimal public API for embedding the forum
// sync engine in other Go programs.
//
// The engine keeps a live, classified view of the forum threads for one
// ticket/run scope. Callers construct it over an HTTP client, Start it, and
// read snapshots with State or Subscribe.
package forumwatch

import (
	"github.com/kball/forumwatch/internal/board"
	"github.com/kball/forumwatch/internal/engine"
	"github.com/kball/forumwatch/internal/forumapi"
	"github.com/kball/forumwatch/internal/types"
)

// Core types for working with threads
type (
	Thread       = types.Thread
	ThreadDetail = types.ThreadDetail
	Post         = types.Post
	Event        = types.Event
	ThreadState  = types.ThreadState
	Priority     = types.Priority
	Scope        = types.Scope
	Filter       = types.Filter
	BoardKey     = types.BoardKey
	RunSnapshot  = types.RunSnapshot
	Buckets      = board.Buckets
	Counts       = board.Counts
)

// Engine types
type (
	Engine  = engine.Engine
	Options = engine.Options
	State   = engine.State
	Compose = engine.Compose
	Backend = forumapi.Backend
	Client  = forumapi.Client
)

// Thread state constants
const (
	StateNew             = types.StateNew
	StateTriaged         = types.StateTriaged
	StateWaitingOperator = types.StateWaitingOperator
	StateWaitingHuman    = types.StateWaitingHuman
	StateAnswered        = types.StateAnswered
	StateClosed          = types.StateClosed
)

// Board constants
const (
	BoardInProgress        = types.BoardInProgress
	BoardNeedsMe           = types.BoardNeedsMe
	BoardRecentlyCompleted = types.BoardRecentlyCompleted
)

// ErrValidation marks a create or reply rejected before it was sent.
var ErrValidation = engine.ErrValidation

// NewClient creates an HTTP client for the forum backend at baseURL.
func NewClient(baseURL string) *Client {
	return forumapi.NewClient(baseURL)
}

// NewEngine creates an engine. When opts.Dial is nil and the backend is a
// *Client, the push channel is dialed through that client.
func NewEngine(opts Options) *Engine {
	if opts.Dial == nil {
		if c, ok := opts.Backend.(*forumapi.Client); ok {
			opts.Dial = engine.DialClient(c)
		}
	}
	return engine.New(opts)
}
