package telemetry

import (
	"context"
	"errors"
	"fmt"
)

// Telemetry bundles the tracer and metrics.
type Telemetry struct {
	Tracer  *Tracer
	Metrics *Metrics
}

// Setup creates both signals from cfg.
func Setup(ctx context.Context, cfg Config) (*Telemetry, error) {
	if !cfg.TracesExporter.Valid() && cfg.TracesExporter != "" {
		return nil, fmt.Errorf("unknown traces exporter %q", cfg.TracesExporter)
	}
	if !cfg.MetricsExporter.Valid() && cfg.MetricsExporter != "" {
		return nil, fmt.Errorf("unknown metrics exporter %q", cfg.MetricsExporter)
	}

	tracer, err := NewTracer(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	metrics, err := NewMetrics(ctx, cfg)
	if err != nil {
		_ = tracer.Shutdown(ctx)
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return &Telemetry{Tracer: tracer, Metrics: metrics}, nil
}

// Noop returns telemetry that records nothing.
func Noop() *Telemetry {
	return &Telemetry{Tracer: NoopTracer(), Metrics: NoopMetrics()}
}

// Shutdown flushes both signals.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return errors.Join(t.Tracer.Shutdown(ctx), t.Metrics.Shutdown(ctx))
}
