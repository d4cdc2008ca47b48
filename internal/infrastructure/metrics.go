package infrastructure

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/daiyabarus/FAC/internal/kpi"
)

// EngineMetrics is the OpenTelemetry-backed implementation of the
// engine's metrics interface, plus the HTTP counters the middleware
// records. Exposed through the Prometheus bridge.
type EngineMetrics struct {
	recordsNormalized metric.Int64Counter
	recordsSkipped    metric.Int64Counter
	resultsComputed   metric.Int64Counter
	flagsRaised       metric.Int64Counter
	runsTotal         metric.Int64Counter
	runDuration       metric.Float64Histogram

	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
}

// NewEngineMetrics registers the engine instruments on the given meter.
func NewEngineMetrics(meter metric.Meter) (*EngineMetrics, error) {
	m := &EngineMetrics{}
	var err error

	if m.recordsNormalized, err = meter.Int64Counter(
		"fac_records_normalized_total",
		metric.WithDescription("Raw records successfully normalized"),
	); err != nil {
		return nil, fmt.Errorf("records_normalized counter: %w", err)
	}
	if m.recordsSkipped, err = meter.Int64Counter(
		"fac_records_skipped_total",
		metric.WithDescription("Malformed records skipped during normalization"),
	); err != nil {
		return nil, fmt.Errorf("records_skipped counter: %w", err)
	}
	if m.resultsComputed, err = meter.Int64Counter(
		"fac_results_computed_total",
		metric.WithDescription("KPI results computed across all groups"),
	); err != nil {
		return nil, fmt.Errorf("results_computed counter: %w", err)
	}
	if m.flagsRaised, err = meter.Int64Counter(
		"fac_flags_raised_total",
		metric.WithDescription("Validation flags raised, by kind"),
	); err != nil {
		return nil, fmt.Errorf("flags_raised counter: %w", err)
	}
	if m.runsTotal, err = meter.Int64Counter(
		"fac_runs_total",
		metric.WithDescription("Pipeline runs, by outcome"),
	); err != nil {
		return nil, fmt.Errorf("runs counter: %w", err)
	}
	if m.runDuration, err = meter.Float64Histogram(
		"fac_run_duration_seconds",
		metric.WithDescription("Pipeline run duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("run_duration histogram: %w", err)
	}
	if m.HTTPRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	); err != nil {
		return nil, fmt.Errorf("http_requests counter: %w", err)
	}
	if m.HTTPRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("http_request_duration histogram: %w", err)
	}

	return m, nil
}

// RecordsNormalized implements kpi.Metrics.
func (m *EngineMetrics) RecordsNormalized(ctx context.Context, n int) {
	m.recordsNormalized.Add(ctx, int64(n))
}

// RecordsSkipped implements kpi.Metrics.
func (m *EngineMetrics) RecordsSkipped(ctx context.Context, n int) {
	m.recordsSkipped.Add(ctx, int64(n))
}

// ResultsComputed implements kpi.Metrics.
func (m *EngineMetrics) ResultsComputed(ctx context.Context, n int) {
	m.resultsComputed.Add(ctx, int64(n))
}

// FlagRaised implements kpi.Metrics.
func (m *EngineMetrics) FlagRaised(ctx context.Context, kind kpi.FlagKind) {
	m.flagsRaised.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(kind))))
}

// RunCompleted records one finished pipeline run.
func (m *EngineMetrics) RunCompleted(ctx context.Context, seconds float64, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.runsTotal.Add(ctx, 1, attrs)
	m.runDuration.Record(ctx, seconds, attrs)
}

var _ kpi.Metrics = (*EngineMetrics)(nil)
