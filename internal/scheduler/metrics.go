package scheduler

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/civicroute/incidentd/internal/engine"
)

// Metrics publishes cycle outcomes through the global OpenTelemetry meter.
// Without a configured SDK these are no-ops, so the scheduler never pays for
// observability that is not wired up.
type Metrics struct {
	cycles   metric.Int64Counter
	merged   metric.Int64Counter
	created  metric.Int64Counter
	degraded metric.Int64Counter
	errors   metric.Int64Counter
	duration metric.Float64Histogram
}

// NewMetrics registers the scheduler instruments.
func NewMetrics() *Metrics {
	meter := otel.Meter("github.com/civicroute/incidentd/internal/scheduler")

	m := &Metrics{}
	m.cycles, _ = meter.Int64Counter("incidentd.cycles",
		metric.WithDescription("Completed clustering cycles"))
	m.merged, _ = meter.Int64Counter("incidentd.complaints_merged",
		metric.WithDescription("Complaints merged into existing incidents"))
	m.created, _ = meter.Int64Counter("incidentd.incidents_created",
		metric.WithDescription("New incidents created"))
	m.degraded, _ = meter.Int64Counter("incidentd.complaints_degraded",
		metric.WithDescription("Complaints with unusable embeddings or keywords"))
	m.errors, _ = meter.Int64Counter("incidentd.cycle_errors",
		metric.WithDescription("Failed clustering polls"))
	m.duration, _ = meter.Float64Histogram("incidentd.cycle_duration_seconds",
		metric.WithDescription("Clustering cycle wall time"),
		metric.WithUnit("s"))
	return m
}

// RecordCycle publishes one finished cycle.
func (m *Metrics) RecordCycle(ctx context.Context, stats engine.CycleStats) {
	m.cycles.Add(ctx, 1)
	m.merged.Add(ctx, int64(stats.Merged))
	m.created.Add(ctx, int64(stats.NewIncidents))
	m.degraded.Add(ctx, int64(stats.Degraded))
	m.duration.Record(ctx, stats.Duration.Seconds())
}

// RecordError publishes one failed poll.
func (m *Metrics) RecordError(ctx context.Context) {
	m.errors.Add(ctx, 1)
}
