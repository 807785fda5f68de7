package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/ericfisherdev/leadenrich/internal/domain/model"
	"github.com/ericfisherdev/leadenrich/internal/domain/port/driven"
)

const (
	// DefaultUsageBuffer is the number of records queued before new ones are dropped.
	DefaultUsageBuffer = 1024

	drainTimeout  = 5 * time.Second
	appendTimeout = 5 * time.Second
)

// UsageRecorder appends usage records off the request path. Records are
// queued on a bounded buffer and written by a single worker; failures are
// logged and never retried.
type UsageRecorder struct {
	store  driven.UsageStore
	queue  chan model.UsageRecord
	logger *slog.Logger
	now    func() time.Time
}

// NewUsageRecorder creates a recorder with the given buffer size.
func NewUsageRecorder(store driven.UsageStore, bufferSize int, logger *slog.Logger) *UsageRecorder {
	if bufferSize <= 0 {
		bufferSize = DefaultUsageBuffer
	}
	return &UsageRecorder{
		store:  store,
		queue:  make(chan model.UsageRecord, bufferSize),
		logger: logger,
		now:    time.Now,
	}
}

// Record enqueues rec without blocking. When the buffer is full the record
// is dropped.
func (r *UsageRecorder) Record(rec model.UsageRecord) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now()
	}

	select {
	case r.queue <- rec:
	default:
		r.logger.Warn("usage buffer full, dropping record",
			"endpoint", rec.Endpoint,
			"status", rec.ResponseStatus,
		)
	}
}

// Run writes queued records until ctx is canceled, then drains what is left
// for at most five seconds. Run blocks until the drain finishes.
func (r *UsageRecorder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			r.drain()
			return
		case rec := <-r.queue:
			r.write(context.WithoutCancel(ctx), rec)
		}
	}
}

func (r *UsageRecorder) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	for {
		select {
		case rec := <-r.queue:
			r.write(ctx, rec)
		default:
			return
		}
		if ctx.Err() != nil {
			r.logger.Warn("usage drain timed out", "remaining", len(r.queue))
			return
		}
	}
}

func (r *UsageRecorder) write(ctx context.Context, rec model.UsageRecord) {
	ctx, cancel := context.WithTimeout(ctx, appendTimeout)
	defer cancel()

	if err := r.store.Append(ctx, rec); err != nil {
		r.logger.Error("append usage record failed",
			"endpoint", rec.Endpoint,
			"status", rec.ResponseStatus,
			"error", err,
		)
	}
}
