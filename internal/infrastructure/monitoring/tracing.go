// Package monitoring wires the logging, metrics and tracing backends used by the credkit binaries.
package monitoring

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/turtacn/credkit/internal/config"
	"github.com/turtacn/credkit/pkg/logger"
)

const instrumentationName = "github.com/turtacn/credkit"

// TracingManager owns the global OpenTelemetry tracer provider.
type TracingManager struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
	logger   logger.Logger
}

// NewTracingManager installs a tracer provider exporting to Jaeger when tracing is enabled.
// When disabled, spans go to whatever global provider is already set (a no-op by default).
func NewTracingManager(cfg config.TracingConfig, log logger.Logger) (*TracingManager, error) {
	log = logger.Component(log, "tracing")
	if !cfg.Enabled {
		log.Debug(context.Background(), "Tracing is disabled")
		return &TracingManager{
			tracer: otel.Tracer(instrumentationName),
			logger: log,
		}, nil
	}

	exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(
		jaeger.WithEndpoint(cfg.JaegerEndpoint),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create Jaeger exporter: %w", err)
	}
	return NewTracingManagerWithExporter(cfg, exporter, log)
}

// NewTracingManagerWithExporter installs a tracer provider that batches spans to exporter.
func NewTracingManagerWithExporter(cfg config.TracingConfig, exporter sdktrace.SpanExporter, log logger.Logger) (*TracingManager, error) {
	log = logger.Component(log, "tracing")
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "credkit"
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			attribute.String("service.name", serviceName),
			attribute.String("environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SamplingRate))),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Info(context.Background(), "Tracing initialized",
		logger.String("endpoint", cfg.JaegerEndpoint),
		logger.Any("sample_rate", cfg.SamplingRate),
	)

	return &TracingManager{
		tracer:   provider.Tracer(instrumentationName),
		provider: provider,
		logger:   log,
	}, nil
}

// StartSpan starts a span with the given attributes.
func (tm *TracingManager) StartSpan(ctx context.Context, spanName string, attrs map[string]interface{}) (context.Context, trace.Span) {
	attributes := make([]attribute.KeyValue, 0, len(attrs))
	for key, value := range attrs {
		attributes = append(attributes, convertToAttribute(key, value))
	}
	return tm.tracer.Start(ctx, spanName, trace.WithAttributes(attributes...))
}

// RecordError marks the span in ctx as failed.
func (tm *TracingManager) RecordError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// GetTraceID returns the trace ID in ctx, or "".
func (tm *TracingManager) GetTraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}

// ForceFlush exports all ended spans without shutting down.
func (tm *TracingManager) ForceFlush(ctx context.Context) error {
	if tm.provider == nil {
		return nil
	}
	return tm.provider.ForceFlush(ctx)
}

// Shutdown flushes pending spans and stops the provider.
func (tm *TracingManager) Shutdown(ctx context.Context) error {
	if tm.provider == nil {
		return nil
	}
	if err := tm.ForceFlush(ctx); err != nil {
		tm.logger.Warn(ctx, "Failed to flush spans", logger.Any("error", err.Error()))
	}
	if err := tm.provider.Shutdown(ctx); err != nil {
		tm.logger.Error(ctx, "Failed to shutdown tracing provider", err)
		return err
	}
	tm.logger.Debug(ctx, "Tracing provider shut down")
	return nil
}

// TraceOperation runs fn inside a span named operationName.
func TraceOperation(ctx context.Context, tm *TracingManager, operationName string, fn func(context.Context) error, attrs map[string]interface{}) error {
	ctx, span := tm.StartSpan(ctx, operationName, attrs)
	defer span.End()

	if err := fn(ctx); err != nil {
		tm.RecordError(ctx, err)
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

func convertToAttribute(key string, value interface{}) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case bool:
		return attribute.Bool(key, v)
	case []string:
		return attribute.StringSlice(key, v)
	default:
		return attribute.String(key, fmt.Sprintf("%v", v))
	}
}
