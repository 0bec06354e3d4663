package main

import (
	"github.com/kball/forumwatch/internal/config"
	"github.com/kball/forumwatch/internal/engine"
	"github.com/kball/forumwatch/internal/forumapi"
	"github.com/kball/forumwatch/internal/telemetry"
)

// newClient builds the HTTP client for the configured backend.
func newClient(s config.Settings) *forumapi.Client {
	return forumapi.NewClient(s.Server,
		forumapi.WithTimeout(s.RequestTimeout),
		forumapi.WithUserAgent("forumwatch/"+Version),
	)
}

// newBackend returns the instrumented backend used by one-shot commands.
func newBackend(s config.Settings) forumapi.Backend {
	return telemetry.WrapBackend(newClient(s))
}

// newEngine builds an engine over the configured backend. When live is false
// the engine neither subscribes to the push channel nor polls diagnostics,
// which is what one-shot commands want.
func newEngine(s config.Settings, live bool) *engine.Engine {
	client := newClient(s)
	opts := engine.Options{
		Backend:       telemetry.WrapBackend(client),
		DebugInterval: -1,
		DebugLimit:    s.DebugLimit,
		QueryLimit:    s.QueryLimit,
		Ticket:        s.Ticket,
		Run:           s.Run,
		Filter:        s.Filter(),
	}
	if live {
		opts.Dial = engine.DialClient(client)
		opts.Quiet = s.StreamDebounce
		opts.DebugInterval = s.DebugInterval
	}
	return engine.New(opts)
}
