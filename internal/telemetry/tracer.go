// Package telemetry wires OpenTelemetry tracing and metrics for the agent chat server.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// ExporterType selects where spans and metrics are sent.
type ExporterType string

const (
	// ExporterNone disables export (no-op).
	ExporterNone ExporterType = "none"
	// ExporterStdout writes to stdout.
	ExporterStdout ExporterType = "stdout"
	// ExporterOTLPGRPC exports via OTLP over gRPC.
	ExporterOTLPGRPC ExporterType = "otlp-grpc"
	// ExporterOTLPHTTP exports via OTLP over HTTP.
	ExporterOTLPHTTP ExporterType = "otlp-http"
)

// Valid reports whether e is a known exporter type.
func (e ExporterType) Valid() bool {
	switch e {
	case ExporterNone, ExporterStdout, ExporterOTLPGRPC, ExporterOTLPHTTP:
		return true
	}
	return false
}

// Config holds exporter settings for both signals.
type Config struct {
	ServiceName     string
	ServiceVersion  string
	TracesExporter  ExporterType
	MetricsExporter ExporterType
	OTLPEndpoint    string
	OTLPInsecure    bool
}

// Tracer creates spans around agent queries.
type Tracer struct {
	provider trace.TracerProvider
	tracer   trace.Tracer
	enabled  bool
	shutdown func(context.Context) error
}

// NewTracer creates a Tracer for cfg.TracesExporter. With ExporterNone the
// tracer is a no-op and the global provider is left untouched.
func NewTracer(ctx context.Context, cfg Config) (*Tracer, error) {
	if cfg.TracesExporter == "" || cfg.TracesExporter == ExporterNone {
		return NoopTracer(), nil
	}

	exporter, err := newSpanExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create span exporter: %w", err)
	}

	res, err := newResource(cfg)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return newTracer(tp, true, tp.Shutdown), nil
}

// NoopTracer returns a tracer that records nothing.
func NoopTracer() *Tracer {
	return newTracer(noop.NewTracerProvider(), false, nil)
}

func newTracer(tp trace.TracerProvider, enabled bool, shutdown func(context.Context) error) *Tracer {
	if shutdown == nil {
		shutdown = func(context.Context) error { return nil }
	}
	return &Tracer{
		provider: tp,
		tracer:   tp.Tracer(instrumentationName),
		enabled:  enabled,
		shutdown: shutdown,
	}
}

func newSpanExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	switch cfg.TracesExporter {
	case ExporterStdout:
		return stdouttrace.New(stdouttrace.WithPrettyPrint())

	case ExporterOTLPGRPC:
		opts := []otlptracegrpc.Option{}
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint))
		}
		if cfg.OTLPInsecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		return otlptracegrpc.New(ctx, opts...)

	case ExporterOTLPHTTP:
		opts := []otlptracehttp.Option{}
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(cfg.OTLPEndpoint))
		}
		if cfg.OTLPInsecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)

	default:
		return nil, fmt.Errorf("unknown exporter type: %s", cfg.TracesExporter)
	}
}

func newResource(cfg Config) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{semconv.ServiceName(cfg.ServiceName)}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.ServiceVersion))
	}
	return resource.Merge(resource.Default(), resource.NewWithAttributes("", attrs...))
}

// Enabled reports whether spans are exported.
func (t *Tracer) Enabled() bool { return t.enabled }

// Shutdown flushes pending spans.
func (t *Tracer) Shutdown(ctx context.Context) error {
	return t.shutdown(ctx)
}

// StartQuerySpan starts a client span for one agent query.
func (t *Tracer) StartQuerySpan(ctx context.Context, sessionID, transport string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "agent.query",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("cityagent.session_id", sessionID),
			attribute.String("cityagent.transport", transport),
		),
	)
}

// EndQuerySpan annotates span with the query outcome and ends it.
// category is empty for successful queries.
func EndQuerySpan(span trace.Span, category, code string, retryable bool) {
	if category == "" {
		span.SetStatus(codes.Ok, "")
		span.End()
		return
	}
	span.SetAttributes(
		attribute.String("error.category", category),
		attribute.String("error.code", code),
		attribute.Bool("error.retryable", retryable),
	)
	span.SetStatus(codes.Error, code)
	span.End()
}
