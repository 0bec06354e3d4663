// Package engine owns the operator view: the current scope and filters, the
// reconciled board buckets, the selection and its timeline, and the
// scope-bound push subscription and debug poller.
package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/kball/forumwatch/internal/board"
	"github.com/kball/forumwatch/internal/debug"
	"github.com/kball/forumwatch/internal/forumapi"
	"github.com/kball/forumwatch/internal/health"
	"github.com/kball/forumwatch/internal/stream"
	"github.com/kball/forumwatch/internal/telemetry"
	"github.com/kball/forumwatch/internal/types"
)

const meterName = "github.com/kball/forumwatch/engine"

// Options configures an Engine.
type Options struct {
	Backend forumapi.Backend
	// Dial opens push subscriptions. Nil disables push; the board then
	// refreshes only on demand and the notice is never set.
	Dial stream.DialFunc

	Quiet time.Duration
	// DebugInterval is the debug poll cadence; negative disables polling.
	DebugInterval time.Duration
	DebugLimit    int
	QueryLimit    int

	Ticket string
	Run    string
	Filter types.Filter
}

// Engine is safe for concurrent use.
type Engine struct {
	backend    forumapi.Backend
	queryLimit int
	debugLimit int

	coalescer *stream.Coalescer
	poller    *health.Poller

	ctx    context.Context
	cancel context.CancelFunc

	passCount  metric.Int64Counter
	passStale  metric.Int64Counter
	streamHits metric.Int64Counter

	// lifecycle serializes scope transitions. It is held while the
	// coalescer and poller are started or stopped, which wait for their
	// goroutines, so it must never be taken from their callbacks.
	lifecycle sync.Mutex

	mu          sync.Mutex
	state       State
	scopeGen    uint64
	filterGen   uint64
	nextPass    uint64
	appliedPass uint64
	inflight    int
	subs        map[int]chan State
	nextSub     int
	closed      bool
}

// New creates an engine. Nothing is fetched until Start.
func New(opts Options) *Engine {
	if opts.QueryLimit <= 0 {
		opts.QueryLimit = forumapi.DefaultLimit
	}
	if opts.DebugLimit <= 0 {
		opts.DebugLimit = health.DefaultLimit
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		backend:    opts.Backend,
		queryLimit: opts.QueryLimit,
		debugLimit: opts.DebugLimit,
		ctx:        ctx,
		cancel:     cancel,
		subs:       make(map[int]chan State),
	}

	filter := opts.Filter
	if filter.TopicMode == "" {
		filter.TopicMode = types.TopicTicket
	}
	scope := board.ResolveScope(opts.Ticket, opts.Run)
	e.state = State{
		Ticket:          strings.TrimSpace(opts.Ticket),
		Run:             strings.TrimSpace(opts.Run),
		Scope:           scope,
		Filter:          filter,
		Board:           types.BoardInProgress,
		Buckets:         board.Classify(board.Rows{}, filter),
		AvailableAgents: []string{},
		Runs:            []types.RunSnapshot{},
		KnownTickets:    []string{},
		Compose: Compose{
			QuestionTicket: scope.Ticket,
			Priority:       types.PriorityNormal,
		},
	}

	meter := telemetry.Meter(meterName)
	e.passCount, _ = meter.Int64Counter("forumwatch.pass.count",
		metric.WithDescription("Reconciliation passes by outcome"),
		metric.WithUnit("{pass}"),
	)
	e.passStale, _ = meter.Int64Counter("forumwatch.pass.stale",
		metric.WithDescription("Reconciliation passes discarded because a newer pass was applied"),
		metric.WithUnit("{pass}"),
	)
	e.streamHits, _ = meter.Int64Counter("forumwatch.stream.frames",
		metric.WithDescription("Valid push frames received"),
		metric.WithUnit("{frame}"),
	)

	if opts.Dial != nil {
		e.coalescer = stream.NewCoalescer(stream.Config{
			Dial:      opts.Dial,
			Quiet:     opts.Quiet,
			OnRefresh: e.onStreamRefresh,
			OnError:   e.onStreamError,
			OnFrame: func(scope types.Scope, frame forumapi.Frame) {
				e.streamHits.Add(e.ctx, 1)
			},
		})
	}
	if opts.DebugInterval >= 0 {
		e.poller = health.NewPoller(health.Config{
			Fetcher:    opts.Backend,
			Interval:   opts.DebugInterval,
			Limit:      opts.DebugLimit,
			OnSnapshot: e.onDebugSnapshot,
			OnError:    e.onDebugError,
		})
	}
	return e
}

// Start acquires the resources of the initial scope and runs the first
// reconciliation pass and runs load.
func (e *Engine) Start(ctx context.Context) error {
	e.lifecycle.Lock()
	e.mu.Lock()
	scope := e.state.Scope
	e.mu.Unlock()
	e.enterScope(scope)
	e.lifecycle.Unlock()

	runsErr := e.RefreshRuns(ctx)
	return errors.Join(e.Reconcile(ctx), runsErr)
}

// Close releases the scope resources and closes every subscriber channel.
func (e *Engine) Close() {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()

	e.leaveScope()
	e.cancel()

	e.mu.Lock()
	for id, ch := range e.subs {
		close(ch)
		delete(e.subs, id)
	}
	e.mu.Unlock()
}

// enterScope releases whatever the previous scope held and starts the push
// subscription and debug poller for scope. Caller holds lifecycle, not mu.
func (e *Engine) enterScope(scope types.Scope) {
	if e.coalescer != nil {
		e.coalescer.Start(scope)
	}
	if e.poller != nil {
		e.poller.Start(scope)
	}
}

func (e *Engine) leaveScope() {
	if e.coalescer != nil {
		e.coalescer.Stop()
	}
	if e.poller != nil {
		e.poller.Stop()
	}
}

// State returns the current snapshot.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Subscribe returns a channel that receives the latest State after every
// change. Slow readers only see the most recent snapshot. The returned
// func unsubscribes.
func (e *Engine) Subscribe() (<-chan State, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ch := make(chan State, 1)
	if e.closed {
		close(ch)
		return ch, func() {}
	}
	id := e.nextSub
	e.nextSub++
	e.subs[id] = ch
	ch <- e.snapshotLocked()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			if c, ok := e.subs[id]; ok {
				close(c)
				delete(e.subs, id)
			}
		})
	}
}

func (e *Engine) snapshotLocked() State {
	s := e.state
	s.Label = board.ScopeLabel(s.Scope, s.Filter.TopicMode, s.Filter.Agent)
	s.Loading = e.inflight > 0
	return s
}

// publishLocked fans the current snapshot out to subscribers, replacing any
// snapshot they have not consumed yet.
func (e *Engine) publishLocked() {
	snap := e.snapshotLocked()
	for _, ch := range e.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

func (e *Engine) setBanner(msg string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Banner = msg
	e.publishLocked()
}

// SetScope changes the ticket/run scope. When the resolved scope differs,
// the old scope's subscription and poller are released before the new
// scope's are created, and a reconciliation pass runs.
func (e *Engine) SetScope(ctx context.Context, ticket, run string) error {
	e.lifecycle.Lock()
	changed := e.applyScope(ticket, run)
	e.lifecycle.Unlock()

	if !changed {
		return nil
	}
	return e.Reconcile(ctx)
}

// applyScope stores the new scope and, if it changed, rebuilds the scope
// resources. Caller holds lifecycle.
func (e *Engine) applyScope(ticket, run string) bool {
	scope := board.ResolveScope(ticket, run)

	e.mu.Lock()
	e.state.Ticket = strings.TrimSpace(ticket)
	e.state.Run = strings.TrimSpace(run)
	if e.state.Compose.QuestionTicket == "" {
		e.state.Compose.QuestionTicket = scope.Ticket
	}
	changed := scope != e.state.Scope
	if changed {
		e.state.Scope = scope
		e.scopeGen++
		e.state.Notice = ""
		e.state.Debug = nil
		e.state.Warning = ""
	}
	e.publishLocked()
	e.mu.Unlock()

	if changed {
		debug.Logger().Debug().Str("ticket", scope.Ticket).Str("run_id", scope.RunID).Msg("engine: scope changed")
		e.enterScope(scope)
	}
	return changed
}

// SetFilter replaces the non-scope filters and runs a reconciliation pass.
func (e *Engine) SetFilter(ctx context.Context, f types.Filter) error {
	if f.TopicMode == "" {
		f.TopicMode = types.TopicTicket
	}
	e.mu.Lock()
	if f == e.state.Filter {
		e.mu.Unlock()
		return nil
	}
	e.state.Filter = f
	e.filterGen++
	e.publishLocked()
	e.mu.Unlock()

	return e.Reconcile(ctx)
}

// SetActiveBoard switches the displayed board.
func (e *Engine) SetActiveBoard(key types.BoardKey) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Board = key
	e.publishLocked()
}

// Refresh runs a pass, reloads the debug snapshot, and reloads the selected
// thread's detail.
func (e *Engine) Refresh(ctx context.Context) error {
	passErr := e.Reconcile(ctx)
	debugErr := e.RefreshDebug(ctx)

	e.mu.Lock()
	selected := e.state.Selected
	e.mu.Unlock()

	var detailErr error
	if selected != "" {
		detailErr = e.RefreshDetail(ctx)
	}
	return errors.Join(passErr, debugErr, detailErr)
}

// Reconcile runs one reconciliation pass: four concurrent queries, then
// classification and the selection guard, published atomically. A failed
// pass keeps the previous buckets. A pass that completes after a newer one
// was applied, or after the scope or filters changed, is discarded.
func (e *Engine) Reconcile(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.nextPass++
	id := e.nextPass
	scope, filter := e.state.Scope, e.state.Filter
	scopeGen, filterGen := e.scopeGen, e.filterGen
	e.inflight++
	e.publishLocked()
	e.mu.Unlock()

	log := debug.Logger().With().Uint64("pass", id).Str("ticket", scope.Ticket).Str("run_id", scope.RunID).Logger()
	rows, err := e.fetchRows(ctx, scope, filter)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.inflight--

	stale := id < e.appliedPass || scopeGen != e.scopeGen || filterGen != e.filterGen
	if stale {
		e.passStale.Add(e.ctx, 1)
		log.Debug().Msg("engine: discarding stale pass")
		e.publishLocked()
		return nil
	}
	if err != nil {
		e.passCount.Add(e.ctx, 1, metric.WithAttributes(attribute.String("outcome", "error")))
		log.Warn().Err(err).Msg("engine: reconciliation failed")
		e.state.Banner = err.Error()
		e.publishLocked()
		return err
	}

	e.appliedPass = id
	e.passCount.Add(e.ctx, 1, metric.WithAttributes(attribute.String("outcome", "ok")))

	buckets := board.Classify(rows, filter)
	e.state.Buckets = buckets
	e.state.Counts = buckets.Counts()
	e.state.AvailableAgents = buckets.AvailableAgents()
	e.state.PassID = id
	e.state.LastRefresh = time.Now()
	e.state.Banner = ""

	if kept := board.GuardSelection(e.state.Selected, buckets); kept != e.state.Selected {
		log.Debug().Str("thread", e.state.Selected).Msg("engine: selection no longer visible")
		e.clearSelectionLocked()
	}

	agentReset := false
	if filter.TopicMode == types.TopicAgent && filter.Agent != "" && !containsFold(e.state.AvailableAgents, filter.Agent) {
		e.state.Filter.Agent = ""
		e.filterGen++
		agentReset = true
	}
	e.publishLocked()

	if agentReset {
		go func() { _ = e.Reconcile(e.ctx) }()
	}
	return nil
}

func (e *Engine) fetchRows(ctx context.Context, scope types.Scope, f types.Filter) (board.Rows, error) {
	var rows board.Rows
	g, gctx := errgroup.WithContext(ctx)

	search := forumapi.SearchParams{
		Scope:      scope,
		Query:      strings.TrimSpace(f.Query),
		Priority:   f.Priority,
		ViewerType: f.ViewerType,
		ViewerID:   strings.TrimSpace(f.ViewerID),
		Limit:      e.queryLimit,
	}
	g.Go(func() error {
		var err error
		rows.All, err = e.backend.SearchThreads(gctx, search)
		return err
	})
	g.Go(func() error {
		closed := search
		closed.State = types.StateClosed
		var err error
		rows.Closed, err = e.backend.SearchThreads(gctx, closed)
		return err
	})

	queue := func(kind types.QueueType, dst *[]types.Thread) func() error {
		return func() error {
			var err error
			*dst, err = e.backend.QueueThreads(gctx, forumapi.QueueParams{
				Scope:      scope,
				Type:       kind,
				Priority:   f.Priority,
				ViewerType: f.ViewerType,
				ViewerID:   strings.TrimSpace(f.ViewerID),
				Limit:      e.queryLimit,
			})
			return err
		}
	}
	g.Go(queue(types.QueueUnseen, &rows.Unseen))
	g.Go(queue(types.QueueUnanswered, &rows.Unanswered))

	if err := g.Wait(); err != nil {
		return board.Rows{}, err
	}
	return rows, nil
}

func containsFold(values []string, want string) bool {
	want = strings.ToLower(strings.TrimSpace(want))
	for _, v := range values {
		if strings.ToLower(v) == want {
			return true
		}
	}
	return false
}

// RefreshRuns reloads the runs list and the known tickets derived from it.
func (e *Engine) RefreshRuns(ctx context.Context) error {
	runs, err := e.backend.ListRuns(ctx)
	if err != nil {
		e.setBanner(err.Error())
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Runs = runs
	e.state.KnownTickets = board.KnownTickets(runs)
	e.publishLocked()
	return nil
}

// RefreshDebug fetches the debug snapshot for the current scope once,
// outside the poller's cadence.
func (e *Engine) RefreshDebug(ctx context.Context) error {
	e.mu.Lock()
	scope := e.state.Scope
	e.mu.Unlock()

	snap, err := e.backend.DebugSnapshot(ctx, scope, e.debugLimit)
	if err != nil {
		e.onDebugError(scope, err)
		return err
	}
	e.onDebugSnapshot(scope, snap)
	return nil
}

func (e *Engine) onDebugSnapshot(scope types.Scope, snap *types.DebugSnapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if scope != e.state.Scope {
		return
	}
	e.state.Debug = snap
	e.state.Warning = health.Warning(snap)
	e.publishLocked()
}

func (e *Engine) onDebugError(scope types.Scope, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if scope != e.state.Scope {
		return
	}
	e.state.Banner = err.Error()
	e.publishLocked()
}

func (e *Engine) onStreamRefresh(scope types.Scope) {
	e.mu.Lock()
	current := scope == e.state.Scope
	selected := e.state.Selected
	e.mu.Unlock()
	if !current {
		return
	}

	_ = e.Reconcile(e.ctx)
	if selected != "" {
		_ = e.RefreshDetail(e.ctx)
	}
}

func (e *Engine) onStreamError(scope types.Scope, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if scope != e.state.Scope {
		return
	}
	e.state.Notice = StreamUnavailableNotice
	e.publishLocked()
}

// DialClient adapts a forum client's WebSocket subscription for Options.Dial.
func DialClient(c *forumapi.Client) stream.DialFunc {
	return func(ctx context.Context, scope types.Scope) (stream.Subscription, error) {
		st, err := c.Subscribe(ctx, scope)
		if err != nil {
			return nil, err
		}
		return st, nil
	}
}
