// Package telemetry records enrichment metrics through OpenTelemetry.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ericfisherdev/leadenrich/internal/domain/model"
	"github.com/ericfisherdev/leadenrich/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.Metrics = (*Metrics)(nil)

// Metrics implements driven.Metrics with OpenTelemetry instruments.
// It is safe for concurrent use.
type Metrics struct {
	requests     metric.Int64Counter
	attempts     metric.Int64Counter
	durationHist metric.Float64Histogram
}

// NewMetrics creates the enrichment instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	requests, err := meter.Int64Counter(
		"enrich.requests",
		metric.WithDescription("Enrichment results served"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	attempts, err := meter.Int64Counter(
		"enrich.provider.attempts",
		metric.WithDescription("Provider calls made on cache misses"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"enrich.duration_ms",
		metric.WithDescription("Enrichment duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		requests:     requests,
		attempts:     attempts,
		durationHist: durationHist,
	}, nil
}

// RecordEnrichment counts a served result and records its latency.
func (m *Metrics) RecordEnrichment(ctx context.Context, kind model.Kind, source string, cached bool, duration time.Duration) {
	opt := metric.WithAttributes(
		attribute.String("kind", string(kind)),
		attribute.String("source", source),
		attribute.Bool("cached", cached),
	)

	m.requests.Add(ctx, 1, opt)
	m.durationHist.Record(ctx, float64(duration.Microseconds())/1000, opt)
}

// RecordProviderAttempt counts one provider call by outcome.
func (m *Metrics) RecordProviderAttempt(ctx context.Context, provider, outcome string) {
	m.attempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("outcome", outcome),
	))
}
