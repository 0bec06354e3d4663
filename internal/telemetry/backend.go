package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/kball/forumwatch/internal/forumapi"
	"github.com/kball/forumwatch/internal/types"
)

const backendScopeName = "github.com/kball/forumwatch/backend"

// InstrumentedBackend wraps forumapi.Backend with OTel tracing and metrics.
// Every call gets a span and is counted in forumwatch.backend.* metrics.
type InstrumentedBackend struct {
	inner  forumapi.Backend
	tracer trace.Tracer
	ops    metric.Int64Counter
	dur    metric.Float64Histogram
	errs   metric.Int64Counter
	rows   metric.Int64Histogram
}

// WrapBackend returns b decorated with OTel instrumentation.
// When telemetry is disabled, b is returned as-is.
func WrapBackend(b forumapi.Backend) forumapi.Backend {
	if !Enabled() {
		return b
	}
	return newInstrumentedBackend(b)
}

func newInstrumentedBackend(b forumapi.Backend) *InstrumentedBackend {
	m := Meter(backendScopeName)
	ops, _ := m.Int64Counter("forumwatch.backend.requests",
		metric.WithDescription("Total backend requests issued"),
	)
	dur, _ := m.Float64Histogram("forumwatch.backend.request.duration",
		metric.WithDescription("Backend request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	errs, _ := m.Int64Counter("forumwatch.backend.errors",
		metric.WithDescription("Total failed backend requests"),
	)
	rows, _ := m.Int64Histogram("forumwatch.backend.rows",
		metric.WithDescription("Threads returned per search/queue request"),
	)
	return &InstrumentedBackend{
		inner:  b,
		tracer: Tracer(backendScopeName),
		ops:    ops,
		dur:    dur,
		errs:   errs,
		rows:   rows,
	}
}

func (b *InstrumentedBackend) op(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span, time.Time) {
	all := append([]attribute.KeyValue{attribute.String("forum.operation", name)}, attrs...)
	ctx, span := b.tracer.Start(ctx, "backend."+name,
		trace.WithAttributes(all...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	b.ops.Add(ctx, 1, metric.WithAttributes(all...))
	return ctx, span, time.Now()
}

func (b *InstrumentedBackend) done(ctx context.Context, span trace.Span, start time.Time, err error, attrs ...attribute.KeyValue) {
	ms := float64(time.Since(start).Milliseconds())
	b.dur.Record(ctx, ms, metric.WithAttributes(attrs...))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		b.errs.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	span.End()
}

func scopeAttrs(scope types.Scope) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("forum.ticket", scope.Ticket),
		attribute.String("forum.run_id", scope.RunID),
	}
}

func (b *InstrumentedBackend) SearchThreads(ctx context.Context, p forumapi.SearchParams) ([]types.Thread, error) {
	attrs := append(scopeAttrs(p.Scope), attribute.String("forum.state", string(p.State)))
	ctx, span, t := b.op(ctx, "SearchThreads", attrs...)
	v, err := b.inner.SearchThreads(ctx, p)
	if err == nil {
		b.rows.Record(ctx, int64(len(v)), metric.WithAttributes(attrs...))
	}
	b.done(ctx, span, t, err, attrs...)
	return v, err
}

func (b *InstrumentedBackend) QueueThreads(ctx context.Context, p forumapi.QueueParams) ([]types.Thread, error) {
	attrs := append(scopeAttrs(p.Scope), attribute.String("forum.queue", string(p.Type)))
	ctx, span, t := b.op(ctx, "QueueThreads", attrs...)
	v, err := b.inner.QueueThreads(ctx, p)
	if err == nil {
		b.rows.Record(ctx, int64(len(v)), metric.WithAttributes(attrs...))
	}
	b.done(ctx, span, t, err, attrs...)
	return v, err
}

func (b *InstrumentedBackend) GetThread(ctx context.Context, threadID string) (*types.ThreadDetail, error) {
	attrs := []attribute.KeyValue{attribute.String("forum.thread_id", threadID)}
	ctx, span, t := b.op(ctx, "GetThread", attrs...)
	v, err := b.inner.GetThread(ctx, threadID)
	b.done(ctx, span, t, err, attrs...)
	return v, err
}

func (b *InstrumentedBackend) CreateThread(ctx context.Context, req forumapi.CreateThreadRequest) (*types.Thread, error) {
	attrs := []attribute.KeyValue{
		attribute.String("forum.ticket", req.Ticket),
		attribute.String("forum.priority", string(req.Priority)),
	}
	ctx, span, t := b.op(ctx, "CreateThread", attrs...)
	v, err := b.inner.CreateThread(ctx, req)
	b.done(ctx, span, t, err, attrs...)
	return v, err
}

func (b *InstrumentedBackend) PostReply(ctx context.Context, threadID string, req forumapi.ReplyRequest) (*types.Thread, error) {
	attrs := []attribute.KeyValue{attribute.String("forum.thread_id", threadID)}
	ctx, span, t := b.op(ctx, "PostReply", attrs...)
	v, err := b.inner.PostReply(ctx, threadID, req)
	b.done(ctx, span, t, err, attrs...)
	return v, err
}

func (b *InstrumentedBackend) MarkSeen(ctx context.Context, threadID string, req forumapi.SeenRequest) error {
	attrs := []attribute.KeyValue{attribute.String("forum.thread_id", threadID)}
	ctx, span, t := b.op(ctx, "MarkSeen", attrs...)
	err := b.inner.MarkSeen(ctx, threadID, req)
	b.done(ctx, span, t, err, attrs...)
	return err
}

func (b *InstrumentedBackend) DebugSnapshot(ctx context.Context, scope types.Scope, limit int) (*types.DebugSnapshot, error) {
	attrs := scopeAttrs(scope)
	ctx, span, t := b.op(ctx, "DebugSnapshot", attrs...)
	v, err := b.inner.DebugSnapshot(ctx, scope, limit)
	b.done(ctx, span, t, err, attrs...)
	return v, err
}

func (b *InstrumentedBackend) ListRuns(ctx context.Context) ([]types.RunSnapshot, error) {
	ctx, span, t := b.op(ctx, "ListRuns")
	v, err := b.inner.ListRuns(ctx)
	b.done(ctx, span, t, err)
	return v, err
}
