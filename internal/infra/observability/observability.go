// Package observability wires structured logging, OpenTelemetry metrics
// (exported to Prometheus) and OpenTelemetry tracing.
package observability

import (
	"context"
	"errors"

	"github.com/nimec77/deepseek-agents/internal/shared/logging"
)

// Observability owns the metrics and tracing providers for one process.
type Observability struct {
	Metrics *MetricsCollector
	Tracer  *TracerProvider
}

// New configures the process-wide logger, then metrics and tracing. Metrics
// or tracing that fail to start are logged and replaced with no-ops.
func New(config Config) *Observability {
	logging.Configure(logging.Config{
		Level:  config.Logging.Level,
		Format: config.Logging.Format,
	})
	logger := logging.NewComponentLogger("observability")

	metrics, err := NewMetricsCollector(config.Metrics)
	if err != nil {
		logger.Warn("Failed to initialize metrics: %v", err)
		metrics = &MetricsCollector{}
	}
	tracer, err := NewTracerProvider(config.Tracing)
	if err != nil {
		logger.Warn("Failed to initialize tracing: %v", err)
		tracer = &TracerProvider{}
	}

	logger.Debug("Observability initialized: log_level=%s metrics=%t tracing=%t",
		config.Logging.Level, config.Metrics.Enabled, config.Tracing.Enabled)

	return &Observability{Metrics: metrics, Tracer: tracer}
}

// Shutdown flushes metrics and traces.
func (o *Observability) Shutdown(ctx context.Context) error {
	if o == nil {
		return nil
	}
	return errors.Join(o.Metrics.Shutdown(ctx), o.Tracer.Shutdown(ctx))
}
