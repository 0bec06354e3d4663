// Package health polls the backend's debug snapshot on a fixed interval and
// derives the operator-facing diagnostics warning from it.
package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/kball/forumwatch/internal/debug"
	"github.com/kball/forumwatch/internal/types"
)

// Defaults for the debug poller.
const (
	DefaultInterval = 15 * time.Second
	DefaultLimit    = 40

	// PendingWarnThreshold is the outbox pending count above which the
	// backlog warning is shown.
	PendingWarnThreshold = 50
)

// Fetcher loads one debug snapshot.
type Fetcher interface {
	DebugSnapshot(ctx context.Context, scope types.Scope, limit int) (*types.DebugSnapshot, error)
}

// Config configures a Poller.
type Config struct {
	Fetcher  Fetcher
	Interval time.Duration
	Limit    int

	OnSnapshot func(scope types.Scope, snap *types.DebugSnapshot)
	OnError    func(scope types.Scope, err error)
}

// Poller fetches the debug snapshot for the current scope immediately and
// then on every interval tick until the scope changes or Stop is called.
type Poller struct {
	cfg Config

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller creates an idle poller.
func NewPoller(cfg Config) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	return &Poller{cfg: cfg}
}

// Start stops polling the previous scope and begins polling scope.
func (p *Poller) Start(scope types.Scope) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})

	// The ticker delivers its first tick right away.
	ticker := backoff.NewTicker(backoff.WithContext(backoff.NewConstantBackOff(p.cfg.Interval), ctx))
	go p.loop(ctx, scope, ticker, p.done)
}

// Stop stops polling and waits for an in-flight fetch to return.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Poller) stopLocked() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
	p.cancel = nil
	p.done = nil
}

func (p *Poller) loop(ctx context.Context, scope types.Scope, ticker *backoff.Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ticker.C:
			if !ok {
				return
			}
			p.poll(ctx, scope)
		}
	}
}

func (p *Poller) poll(ctx context.Context, scope types.Scope) {
	snap, err := p.cfg.Fetcher.DebugSnapshot(ctx, scope, p.cfg.Limit)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		debug.Logger().Warn().Err(err).Str("ticket", scope.Ticket).Msg("health: debug snapshot failed")
		if p.cfg.OnError != nil {
			p.cfg.OnError(scope, err)
		}
		return
	}
	if p.cfg.OnSnapshot != nil {
		p.cfg.OnSnapshot(scope, snap)
	}
}

// Warning derives the single-line diagnostics warning. Precedence: bus
// unhealthy, then failed outbox messages, then an elevated pending backlog.
// A nil snapshot or a healthy one yields "".
func Warning(snap *types.DebugSnapshot) string {
	if snap == nil {
		return ""
	}
	if !snap.Bus.Healthy {
		return "Forum bus is unhealthy; queue/search freshness may lag."
	}
	if snap.Outbox.FailedCount > 0 {
		return fmt.Sprintf("Forum outbox has %d failed message(s).", snap.Outbox.FailedCount)
	}
	if snap.Outbox.PendingCount > PendingWarnThreshold {
		return fmt.Sprintf("Forum outbox backlog is elevated (%d pending).", snap.Outbox.PendingCount)
	}
	return ""
}
