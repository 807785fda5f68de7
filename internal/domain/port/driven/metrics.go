package driven

import (
	"context"
	"time"

	"github.com/ericfisherdev/leadenrich/internal/domain/model"
)

// Provider attempt outcomes reported to Metrics.
const (
	OutcomeSuccess     = "success"
	OutcomeNotFound    = "not_found"
	OutcomeUnavailable = "unavailable"
	OutcomeError       = "error"
)

// Metrics records enrichment telemetry. Implementations must not block.
type Metrics interface {
	RecordEnrichment(ctx context.Context, kind model.Kind, source string, cached bool, duration time.Duration)
	RecordProviderAttempt(ctx context.Context, provider, outcome string)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) RecordEnrichment(context.Context, model.Kind, string, bool, time.Duration) {}
func (NopMetrics) RecordProviderAttempt(context.Context, string, string)                     {}
