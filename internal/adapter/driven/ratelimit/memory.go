// Package ratelimit implements fixed-window request counters behind the
// RateLimiter port, either in process or shared through Redis.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/ericfisherdev/leadenrich/internal/domain/model"
	"github.com/ericfisherdev/leadenrich/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RateLimiter = (*Memory)(nil)

type window struct {
	count   int
	resetAt time.Time
}

// Memory keeps one counter per key for the current window. Windows are
// evicted by ttlcache once they expire.
type Memory struct {
	mu      sync.Mutex
	windows *ttlcache.Cache[string, window]
	limit   int
	size    time.Duration
	now     func() time.Time
}

// NewMemory creates an in-process limiter allowing limit requests per key in
// each window of the given size. Call Close to stop the eviction loop.
func NewMemory(limit int, size time.Duration) *Memory {
	windows := ttlcache.New(
		ttlcache.WithTTL[string, window](size),
		ttlcache.WithDisableTouchOnHit[string, window](),
	)
	go windows.Start()

	return &Memory{
		windows: windows,
		limit:   limit,
		size:    size,
		now:     time.Now,
	}
}

// Allow increments the counter for key and reports whether the request is
// within the limit.
func (m *Memory) Allow(_ context.Context, key string) (model.RateDecision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	w := window{resetAt: now.Add(m.size)}
	if item := m.windows.Get(key); item != nil && now.Before(item.Value().resetAt) {
		w = item.Value()
	}
	w.count++
	m.windows.Set(key, w, w.resetAt.Sub(now))

	return decide(w.count, m.limit, w.resetAt), nil
}

// Close stops the background eviction loop.
func (m *Memory) Close() {
	m.windows.Stop()
}

func decide(count, limit int, resetAt time.Time) model.RateDecision {
	return model.RateDecision{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: max(limit-count, 0),
		ResetAt:   resetAt,
	}
}
