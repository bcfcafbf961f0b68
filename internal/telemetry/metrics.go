package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const instrumentationName = "github.com/ashureev/cityagent"

// Metric names.
const (
	MetricQueries      = "cityagent.queries"
	MetricQueryLatency = "cityagent.query.latency"
)

// Metrics records query counts and latency.
type Metrics struct {
	provider *sdkmetric.MeterProvider
	enabled  bool

	queries metric.Int64Counter
	latency metric.Float64Histogram
}

// NewMetrics creates Metrics for cfg.MetricsExporter. With ExporterNone the
// instruments exist but nothing is read from them.
func NewMetrics(ctx context.Context, cfg Config) (*Metrics, error) {
	if cfg.MetricsExporter == "" || cfg.MetricsExporter == ExporterNone {
		return NoopMetrics(), nil
	}

	exporter, err := newMetricExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create metrics exporter: %w", err)
	}

	res, err := newResource(cfg)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithResource(res),
	)
	m, err := newMetrics(mp, true)
	if err != nil {
		return nil, err
	}
	otel.SetMeterProvider(mp)
	return m, nil
}

// NoopMetrics returns Metrics backed by a provider without readers.
func NoopMetrics() *Metrics {
	m, err := newMetrics(sdkmetric.NewMeterProvider(), false)
	if err != nil {
		// Instrument creation on a reader-less provider cannot fail.
		panic(err)
	}
	return m
}

func newMetrics(mp *sdkmetric.MeterProvider, enabled bool) (*Metrics, error) {
	meter := mp.Meter(instrumentationName)

	queries, err := meter.Int64Counter(MetricQueries,
		metric.WithDescription("Agent queries by outcome category"),
	)
	if err != nil {
		return nil, fmt.Errorf("create query counter: %w", err)
	}

	latency, err := meter.Float64Histogram(MetricQueryLatency,
		metric.WithDescription("Latency of agent queries"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("create query latency histogram: %w", err)
	}

	return &Metrics{
		provider: mp,
		enabled:  enabled,
		queries:  queries,
		latency:  latency,
	}, nil
}

func newMetricExporter(ctx context.Context, cfg Config) (sdkmetric.Exporter, error) {
	switch cfg.MetricsExporter {
	case ExporterStdout:
		return stdoutmetric.New()

	case ExporterOTLPGRPC:
		opts := []otlpmetricgrpc.Option{}
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint))
		}
		if cfg.OTLPInsecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		return otlpmetricgrpc.New(ctx, opts...)

	case ExporterOTLPHTTP:
		opts := []otlpmetrichttp.Option{}
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(cfg.OTLPEndpoint))
		}
		if cfg.OTLPInsecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		return otlpmetrichttp.New(ctx, opts...)

	default:
		return nil, fmt.Errorf("unknown exporter type: %s", cfg.MetricsExporter)
	}
}

// Enabled reports whether metrics are exported.
func (m *Metrics) Enabled() bool { return m.enabled }

// RecordQuery counts one query. category is "ok" for successful queries.
func (m *Metrics) RecordQuery(ctx context.Context, category string, retryable bool, latency time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("category", category),
		attribute.Bool("retryable", retryable),
	)
	m.queries.Add(ctx, 1, attrs)
	m.latency.Record(ctx, float64(latency.Microseconds())/1000, attrs)
}

// Shutdown flushes pending metrics.
func (m *Metrics) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}
