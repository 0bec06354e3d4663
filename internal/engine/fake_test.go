package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kball/forumwatch/internal/forumapi"
	"github.com/kball/forumwatch/internal/stream"
	"github.com/kball/forumwatch/internal/types"
)

// fakeBackend is an in-memory forum. Searches honor scope.Ticket and state;
// queues return rows by their unseen/unanswered flags.
type fakeBackend struct {
	mu       sync.Mutex
	threads  []types.Thread
	runs     []types.RunSnapshot
	snap     *types.DebugSnapshot
	errs     map[string]error
	searches []forumapi.SearchParams
	queues   []forumapi.QueueParams
	creates  []forumapi.CreateThreadRequest
	replies  []forumapi.ReplyRequest
	seen     []forumapi.SeenRequest
	debugs   []types.Scope
	nextID   int
	// omitCreatedID makes CreateThread answer without a thread id.
	omitCreatedID bool

	// gate, when set, blocks the next gateCalls search/queue calls until closed.
	gate      chan struct{}
	gateCalls int
	blocked   int
}

func newFakeBackend(threads ...types.Thread) *fakeBackend {
	return &fakeBackend{
		threads: threads,
		errs:    make(map[string]error),
		snap:    &types.DebugSnapshot{Bus: types.BusStatus{Running: true, Healthy: true}},
	}
}

func (f *fakeBackend) setErr(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[op] = err
}

func (f *fakeBackend) setThreads(threads ...types.Thread) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.threads = threads
}

func (f *fakeBackend) searchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.searches)
}

func (f *fakeBackend) blockedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blocked
}

func (f *fakeBackend) seenCalls() []forumapi.SeenRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]forumapi.SeenRequest(nil), f.seen...)
}

// enter snapshots the rows and waits on the gate if one is armed.
func (f *fakeBackend) enter(ctx context.Context, op string) ([]types.Thread, error) {
	f.mu.Lock()
	rows := append([]types.Thread(nil), f.threads...)
	err := f.errs[op]
	var gate chan struct{}
	if f.gate != nil && f.gateCalls > 0 {
		gate = f.gate
		f.gateCalls--
		f.blocked++
	}
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return rows, err
}

func (f *fakeBackend) SearchThreads(ctx context.Context, p forumapi.SearchParams) ([]types.Thread, error) {
	f.mu.Lock()
	f.searches = append(f.searches, p)
	f.mu.Unlock()

	rows, err := f.enter(ctx, "search")
	if err != nil {
		return nil, err
	}
	out := []types.Thread{}
	for _, t := range rows {
		if p.Scope.Ticket != "" && t.Ticket != p.Scope.Ticket {
			continue
		}
		if p.State != "" && t.State != p.State {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeBackend) QueueThreads(ctx context.Context, p forumapi.QueueParams) ([]types.Thread, error) {
	f.mu.Lock()
	f.queues = append(f.queues, p)
	f.mu.Unlock()

	rows, err := f.enter(ctx, "queue")
	if err != nil {
		return nil, err
	}
	out := []types.Thread{}
	for _, t := range rows {
		if p.Scope.Ticket != "" && t.Ticket != p.Scope.Ticket {
			continue
		}
		if (p.Type == types.QueueUnseen && t.IsUnseen) || (p.Type == types.QueueUnanswered && t.IsUnanswered) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeBackend) GetThread(ctx context.Context, threadID string) (*types.ThreadDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs["get"]; err != nil {
		return nil, err
	}
	for _, t := range f.threads {
		if t.ThreadID == threadID {
			return &types.ThreadDetail{
				Thread: t,
				Posts:  []types.Post{},
				Events: []types.Event{{
					Sequence: t.LastEventSequence,
					Envelope: types.Envelope{EventID: "ev-" + threadID, EventType: "thread.created", ThreadID: threadID, Ticket: t.Ticket},
				}},
			}, nil
		}
	}
	return nil, &forumapi.APIError{StatusCode: 404, Code: "not_found", Message: "thread not found"}
}

func (f *fakeBackend) CreateThread(ctx context.Context, req forumapi.CreateThreadRequest) (*types.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates = append(f.creates, req)
	if err := f.errs["create"]; err != nil {
		return nil, err
	}
	f.nextID++
	t := types.Thread{
		ThreadID:          fmt.Sprintf("th-new-%d", f.nextID),
		Ticket:            req.Ticket,
		RunID:             req.RunID,
		Title:             req.Title,
		State:             types.StateNew,
		Priority:          req.Priority,
		PostsCount:        1,
		OpenedAt:          time.Now(),
		UpdatedAt:         time.Now(),
		LastEventSequence: 1,
	}
	f.threads = append(f.threads, t)
	if f.omitCreatedID {
		return &types.Thread{}, nil
	}
	return &t, nil
}

func (f *fakeBackend) PostReply(ctx context.Context, threadID string, req forumapi.ReplyRequest) (*types.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, req)
	if err := f.errs["reply"]; err != nil {
		return nil, err
	}
	for i := range f.threads {
		if f.threads[i].ThreadID == threadID {
			f.threads[i].PostsCount++
			f.threads[i].LastEventSequence++
			t := f.threads[i]
			return &t, nil
		}
	}
	return nil, errors.New("thread not found")
}

func (f *fakeBackend) MarkSeen(ctx context.Context, threadID string, req forumapi.SeenRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, req)
	return f.errs["seen"]
}

func (f *fakeBackend) DebugSnapshot(ctx context.Context, scope types.Scope, limit int) (*types.DebugSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.debugs = append(f.debugs, scope)
	if err := f.errs["debug"]; err != nil {
		return nil, err
	}
	snap := *f.snap
	snap.Ticket = scope.Ticket
	snap.RunID = scope.RunID
	return &snap, nil
}

func (f *fakeBackend) ListRuns(ctx context.Context) ([]types.RunSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs["runs"]; err != nil {
		return nil, err
	}
	return f.runs, nil
}

var _ forumapi.Backend = (*fakeBackend)(nil)

// fakeSub is a push subscription fed by tests.
type fakeSub struct {
	scope  types.Scope
	frames chan []byte
	errs   chan error
	once   sync.Once
	done   chan struct{}
}

func (s *fakeSub) Read() ([]byte, error) {
	select {
	case b := <-s.frames:
		return b, nil
	case err := <-s.errs:
		return nil, err
	case <-s.done:
		return nil, forumapi.ErrStreamClosed
	}
}

func (s *fakeSub) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

func (s *fakeSub) isClosed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

type fakeDialer struct {
	mu   sync.Mutex
	subs []*fakeSub
	err  error
}

func (d *fakeDialer) dial(ctx context.Context, scope types.Scope) (stream.Subscription, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	s := &fakeSub{scope: scope, frames: make(chan []byte, 16), errs: make(chan error, 1), done: make(chan struct{})}
	d.subs = append(d.subs, s)
	return s, nil
}

func (d *fakeDialer) all() []*fakeSub {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*fakeSub(nil), d.subs...)
}

func (d *fakeDialer) last() *fakeSub {
	subs := d.all()
	if len(subs) == 0 {
		return nil
	}
	return subs[len(subs)-1]
}

const eventsFrame = `{"type":"forum.events","events":[{"sequence":1}]}`
