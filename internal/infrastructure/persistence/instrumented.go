package persistence

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/turtacn/credkit/pkg/storage"
)

const tracerName = "github.com/turtacn/credkit/internal/infrastructure/persistence"

// StorageMetrics receives one observation per adapter call.
type StorageMetrics interface {
	RecordStorageOp(backend, op string, err error, duration time.Duration)
}

// instrumented traces and times every call to the wrapped adapter.
type instrumented struct {
	next    storage.Adapter
	backend string
	metrics StorageMetrics
	tracer  trace.Tracer
}

// Instrument wraps next so each call emits a "storage.<op>" span and, when
// metrics is non-nil, a storage operation observation.
func Instrument(next storage.Adapter, backend string, metrics StorageMetrics) storage.Adapter {
	return &instrumented{
		next:    next,
		backend: backend,
		metrics: metrics,
		tracer:  otel.Tracer(tracerName),
	}
}

func (a *instrumented) observe(ctx context.Context, op string) (context.Context, func(error)) {
	ctx, span := a.tracer.Start(ctx, "storage."+op, trace.WithAttributes(
		attribute.String("storage.backend", a.backend),
	))
	start := time.Now()
	return ctx, func(err error) {
		if a.metrics != nil {
			a.metrics.RecordStorageOp(a.backend, op, err, time.Since(start))
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

func (a *instrumented) Exists(ctx context.Context, name string) (ok bool, err error) {
	ctx, done := a.observe(ctx, "exists")
	defer func() { done(err) }()
	return a.next.Exists(ctx, name)
}

func (a *instrumented) Load(ctx context.Context, name string) (data []byte, err error) {
	ctx, done := a.observe(ctx, "load")
	defer func() { done(err) }()
	return a.next.Load(ctx, name)
}

func (a *instrumented) Store(ctx context.Context, name string, data []byte) (err error) {
	ctx, done := a.observe(ctx, "store")
	defer func() { done(err) }()
	return a.next.Store(ctx, name, data)
}

func (a *instrumented) Update(ctx context.Context, name string, data []byte) (err error) {
	ctx, done := a.observe(ctx, "update")
	defer func() { done(err) }()
	return a.next.Update(ctx, name, data)
}

func (a *instrumented) Remove(ctx context.Context, name string) (removed bool, err error) {
	ctx, done := a.observe(ctx, "remove")
	defer func() { done(err) }()
	return a.next.Remove(ctx, name)
}

func (a *instrumented) List(ctx context.Context) (records [][]byte, err error) {
	ctx, done := a.observe(ctx, "list")
	defer func() { done(err) }()
	return a.next.List(ctx)
}

func (a *instrumented) Clear(ctx context.Context) (err error) {
	ctx, done := a.observe(ctx, "clear")
	defer func() { done(err) }()
	return a.next.Clear(ctx)
}

func (a *instrumented) Close() error {
	return storage.Close(a.next)
}
