package outreach

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/rogerHuntGauntlet/outreach/internal/telemetry"
)

type metrics struct {
	generationDuration metric.Float64Histogram
	generations        metric.Int64Counter
	stepFailures       metric.Int64Counter
}

func newMetrics() *metrics {
	meter := telemetry.Meter("outreach/pipeline")
	dur, _ := meter.Float64Histogram("outreach.generation.duration",
		metric.WithDescription("Wall clock of one generation run (ms)"),
		metric.WithUnit("ms"),
	)
	gens, _ := meter.Int64Counter("outreach.generations",
		metric.WithDescription("Generation runs by outcome"),
	)
	fails, _ := meter.Int64Counter("outreach.step.failures",
		metric.WithDescription("Failed pipeline steps by step and policy"),
	)
	return &metrics{generationDuration: dur, generations: gens, stepFailures: fails}
}

func (m *metrics) stepFailed(ctx context.Context, step string, p Policy) {
	if m == nil || m.stepFailures == nil {
		return
	}
	m.stepFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("step", step),
		attribute.String("policy", p.String()),
	))
}

func (m *metrics) runFinished(ctx context.Context, ms float64, outcome string) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	if m.generationDuration != nil {
		m.generationDuration.Record(ctx, ms, attrs)
	}
	if m.generations != nil {
		m.generations.Add(ctx, 1, attrs)
	}
}
