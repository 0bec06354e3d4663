// Package stream holds the push-subscription side of the engine: one
// subscription per scope whose frames are coalesced into debounced
// refreshes.
package stream

import (
	"context"
	"sync"
	"time"

	"github.com/kball/forumwatch/internal/debug"
	"github.com/kball/forumwatch/internal/forumapi"
	"github.com/kball/forumwatch/internal/types"
)

// DefaultQuietPeriod is the debounce window between the last push frame and
// the refresh it triggers.
const DefaultQuietPeriod = 150 * time.Millisecond

// Subscription is an open push channel.
type Subscription interface {
	// Read blocks until the next raw frame or a connection error.
	Read() ([]byte, error)
	Close() error
}

// DialFunc opens a push subscription for a scope.
type DialFunc func(ctx context.Context, scope types.Scope) (Subscription, error)

// Config configures a Coalescer.
type Config struct {
	Dial  DialFunc
	Quiet time.Duration

	// OnRefresh runs once per quiet period after a burst of valid frames.
	OnRefresh func(scope types.Scope)
	// OnError runs when the subscription cannot be opened or drops.
	OnError func(scope types.Scope, err error)
	// OnFrame runs for every valid frame, before debouncing.
	OnFrame func(scope types.Scope, frame forumapi.Frame)
}

// Coalescer owns the push subscription and debounce timer of the current
// scope. Start and Stop must not be called from inside its callbacks.
type Coalescer struct {
	cfg Config

	mu      sync.Mutex
	current *scopeRun
}

// scopeRun is the set of resources bound to one scope.
type scopeRun struct {
	scope     types.Scope
	cancel    context.CancelFunc
	done      chan struct{}
	debouncer *Debouncer

	mu  sync.Mutex
	sub Subscription
}

// NewCoalescer creates an idle coalescer.
func NewCoalescer(cfg Config) *Coalescer {
	if cfg.Quiet <= 0 {
		cfg.Quiet = DefaultQuietPeriod
	}
	return &Coalescer{cfg: cfg}
}

// Start releases the resources of the previous scope, if any, and opens a
// subscription for scope. It returns once the previous scope is fully torn
// down; the new subscription is dialed asynchronously.
func (c *Coalescer) Start(scope types.Scope) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	r := &scopeRun{
		scope:  scope,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	r.debouncer = NewDebouncer(c.cfg.Quiet, func() {
		if ctx.Err() != nil {
			return
		}
		if c.cfg.OnRefresh != nil {
			c.cfg.OnRefresh(scope)
		}
	})
	c.current = r

	go c.run(ctx, r)
}

// Stop releases the current scope's subscription and pending timer.
func (c *Coalescer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

// Scope returns the scope of the live subscription and whether one exists.
func (c *Coalescer) Scope() (types.Scope, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return types.Scope{}, false
	}
	return c.current.scope, true
}

// Pending reports whether a debounced refresh is armed.
func (c *Coalescer) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil && c.current.debouncer.Pending()
}

func (c *Coalescer) stopLocked() {
	r := c.current
	if r == nil {
		return
	}
	c.current = nil

	r.cancel()
	r.mu.Lock()
	if r.sub != nil {
		r.sub.Close()
	}
	r.mu.Unlock()
	<-r.done
	// The reader has exited, so nothing can re-arm the timer after this.
	r.debouncer.Cancel()

	debug.Logger().Debug().
		Str("ticket", r.scope.Ticket).
		Str("run_id", r.scope.RunID).
		Msg("stream: scope released")
}

func (c *Coalescer) run(ctx context.Context, r *scopeRun) {
	defer close(r.done)
	log := debug.Logger().With().Str("ticket", r.scope.Ticket).Str("run_id", r.scope.RunID).Logger()

	sub, err := c.cfg.Dial(ctx, r.scope)
	if err != nil {
		if ctx.Err() == nil {
			log.Warn().Err(err).Msg("stream: subscribe failed")
			c.fail(r.scope, err)
		}
		return
	}

	r.mu.Lock()
	if ctx.Err() != nil {
		r.mu.Unlock()
		sub.Close()
		return
	}
	r.sub = sub
	r.mu.Unlock()
	log.Debug().Msg("stream: subscribed")

	for {
		data, err := sub.Read()
		if err != nil {
			if ctx.Err() == nil {
				log.Warn().Err(err).Msg("stream: connection lost")
				c.fail(r.scope, err)
			}
			return
		}

		frame, ok := forumapi.ParseFrame(data)
		if !ok {
			continue
		}
		if c.cfg.OnFrame != nil {
			c.cfg.OnFrame(r.scope, frame)
		}
		r.debouncer.Trigger()
	}
}

func (c *Coalescer) fail(scope types.Scope, err error) {
	if c.cfg.OnError != nil {
		c.cfg.OnError(scope, err)
	}
}
