package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ericfisherdev/leadenrich/internal/domain/model"
	"github.com/ericfisherdev/leadenrich/internal/domain/port/driven"
)

// BreakerState is the state of a provider circuit breaker.
type BreakerState int

const (
	// BreakerClosed lets calls through.
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects calls until the reset timeout elapses.
	BreakerOpen
	// BreakerHalfOpen lets a single probe call through.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures a provider circuit breaker.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive hard failures that opens the
	// circuit. Default: 5
	MaxFailures int

	// ResetTimeout is how long the circuit stays open. Default: 30 seconds
	ResetTimeout time.Duration
}

// BreakerProvider wraps a Provider with a circuit breaker. Only
// driven.ErrProviderError counts as a failure; not-found answers are healthy
// responses. While open, calls fail with driven.ErrProviderUnavailable
// without reaching the wrapped provider.
type BreakerProvider struct {
	driven.Provider

	config BreakerConfig
	logger *slog.Logger
	now    func() time.Time

	mu         sync.Mutex
	state      BreakerState
	failures   int
	openedAt   time.Time
	probeInUse bool
}

// Compile-time interface satisfaction check.
var _ driven.Provider = (*BreakerProvider)(nil)

// NewBreakerProvider wraps p with a circuit breaker.
func NewBreakerProvider(p driven.Provider, config BreakerConfig, logger *slog.Logger) *BreakerProvider {
	if config.MaxFailures <= 0 {
		config.MaxFailures = 5
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 30 * time.Second
	}

	return &BreakerProvider{
		Provider: p,
		config:   config,
		logger:   logger,
		now:      time.Now,
		state:    BreakerClosed,
	}
}

// State returns the current breaker state.
func (b *BreakerProvider) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentStateLocked()
}

func (b *BreakerProvider) EnrichEmail(ctx context.Context, email string) (model.Record, error) {
	return b.execute(ctx, func(ctx context.Context) (model.Record, error) {
		return b.Provider.EnrichEmail(ctx, email)
	})
}

func (b *BreakerProvider) EnrichDomain(ctx context.Context, domain string) (model.Record, error) {
	return b.execute(ctx, func(ctx context.Context) (model.Record, error) {
		return b.Provider.EnrichDomain(ctx, domain)
	})
}

func (b *BreakerProvider) execute(ctx context.Context, op func(context.Context) (model.Record, error)) (model.Record, error) {
	if !b.beforeCall() {
		return nil, fmt.Errorf("%s circuit open: %w", b.Name(), driven.ErrProviderUnavailable)
	}

	rec, err := op(ctx)
	b.afterCall(err)
	return rec, err
}

func (b *BreakerProvider) beforeCall() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.currentStateLocked() {
	case BreakerOpen:
		return false
	case BreakerHalfOpen:
		if b.probeInUse {
			return false
		}
		b.probeInUse = true
	}
	return true
}

func (b *BreakerProvider) afterCall(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	failed := errors.Is(err, driven.ErrProviderError)
	from := b.state

	switch b.state {
	case BreakerClosed:
		if !failed {
			b.failures = 0
			return
		}
		b.failures++
		if b.failures >= b.config.MaxFailures {
			b.state = BreakerOpen
			b.openedAt = b.now()
		}

	case BreakerHalfOpen:
		b.probeInUse = false
		if failed {
			b.state = BreakerOpen
			b.openedAt = b.now()
		} else {
			b.state = BreakerClosed
			b.failures = 0
		}
	}

	if from != b.state {
		b.logger.Warn("provider circuit state changed",
			"provider", b.Name(),
			"from", from.String(),
			"to", b.state.String(),
		)
	}
}

func (b *BreakerProvider) currentStateLocked() BreakerState {
	if b.state == BreakerOpen && b.now().Sub(b.openedAt) >= b.config.ResetTimeout {
		b.state = BreakerHalfOpen
		b.probeInUse = false
	}
	return b.state
}
