package observability

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/nimec77/deepseek-agents/internal/shared/logging"
)

// MetricsConfig configures the metrics collector.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// PrometheusPort serves /metrics when positive.
	PrometheusPort int `mapstructure:"prometheus_port" yaml:"prometheus_port"`
}

// MetricsCollector records LLM and pipeline metrics. A zero collector is
// valid and records nothing.
type MetricsCollector struct {
	provider *sdkmetric.MeterProvider
	registry *promclient.Registry

	llmRequests     metric.Int64Counter
	llmTokensInput  metric.Int64Counter
	llmTokensOutput metric.Int64Counter
	llmLatency      metric.Float64Histogram

	stageRuns     metric.Int64Counter
	stageDuration metric.Float64Histogram

	server *http.Server
	logger logging.Logger
}

// NewMetricsCollector creates a collector exporting through a private
// Prometheus registry.
func NewMetricsCollector(config MetricsConfig) (*MetricsCollector, error) {
	logger := logging.NewComponentLogger("metrics")
	if !config.Enabled {
		return &MetricsCollector{logger: logger}, nil
	}

	registry := promclient.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)
	meter := provider.Meter("deepseek-agents")

	m := &MetricsCollector{provider: provider, registry: registry, logger: logger}
	if m.llmRequests, err = meter.Int64Counter(
		"deepseek.llm.requests",
		metric.WithDescription("HTTP attempts against the chat-completions endpoint"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create llm_requests counter: %w", err)
	}
	if m.llmTokensInput, err = meter.Int64Counter(
		"deepseek.llm.tokens.input",
		metric.WithDescription("Prompt tokens reported by the API"),
		metric.WithUnit("{token}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create llm_tokens_input counter: %w", err)
	}
	if m.llmTokensOutput, err = meter.Int64Counter(
		"deepseek.llm.tokens.output",
		metric.WithDescription("Completion tokens reported by the API"),
		metric.WithUnit("{token}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create llm_tokens_output counter: %w", err)
	}
	if m.llmLatency, err = meter.Float64Histogram(
		"deepseek.llm.latency",
		metric.WithDescription("Attempt latency in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("failed to create llm_latency histogram: %w", err)
	}
	if m.stageRuns, err = meter.Int64Counter(
		"deepseek.pipeline.stages",
		metric.WithDescription("Pipeline stage outcomes"),
		metric.WithUnit("{stage}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create pipeline_stages counter: %w", err)
	}
	if m.stageDuration, err = meter.Float64Histogram(
		"deepseek.pipeline.stage.duration",
		metric.WithDescription("Pipeline stage duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("failed to create pipeline_stage_duration histogram: %w", err)
	}

	if config.PrometheusPort > 0 {
		if err := m.StartPrometheusServer(config.PrometheusPort); err != nil {
			logger.Warn("Metrics are collected but not served: %v", err)
		}
	}
	return m, nil
}

// Handler serves the collector's registry in the Prometheus text format.
func (m *MetricsCollector) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartPrometheusServer binds port and serves /metrics in the background.
// A collector runs at most one server; later calls return nil and leave the
// running server in place.
func (m *MetricsCollector) StartPrometheusServer(port int) error {
	logger := logging.OrNop(m.logger)
	if m.server != nil {
		logger.Debug("Prometheus metrics server already running on %s", m.server.Addr)
		return nil
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("listen for prometheus metrics: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{
		Addr:              listener.Addr().String(),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	m.server = server

	logger.Info("Prometheus metrics server listening on %s", server.Addr)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Prometheus server error: %v", err)
		}
	}()
	return nil
}

// Shutdown stops the metrics server and flushes the meter provider.
func (m *MetricsCollector) Shutdown(ctx context.Context) error {
	if m == nil {
		return nil
	}
	var errs []error
	if m.server != nil {
		errs = append(errs, m.server.Shutdown(ctx))
	}
	if m.provider != nil {
		errs = append(errs, m.provider.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// RecordLLMRequest records one HTTP attempt. status is "success" or an error kind.
func (m *MetricsCollector) RecordLLMRequest(ctx context.Context, model, status string, latency time.Duration, inputTokens, outputTokens int) {
	if m == nil || m.llmRequests == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("status", status),
	)
	modelAttr := metric.WithAttributes(attribute.String("model", model))

	m.llmRequests.Add(ctx, 1, attrs)
	m.llmLatency.Record(ctx, latency.Seconds(), attrs)
	if inputTokens > 0 {
		m.llmTokensInput.Add(ctx, int64(inputTokens), modelAttr)
	}
	if outputTokens > 0 {
		m.llmTokensOutput.Add(ctx, int64(outputTokens), modelAttr)
	}
}

// RecordStage records the outcome of one pipeline stage.
func (m *MetricsCollector) RecordStage(ctx context.Context, stage, status string, duration time.Duration) {
	if m == nil || m.stageRuns == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("status", status),
	)
	m.stageRuns.Add(ctx, 1, attrs)
	m.stageDuration.Record(ctx, duration.Seconds(), attrs)
}
