package application_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/leadenrich/internal/application"
	"github.com/ericfisherdev/leadenrich/internal/domain/model"
	"github.com/ericfisherdev/leadenrich/internal/domain/port/driven"
	"github.com/ericfisherdev/leadenrich/internal/domain/validate"
)

func newEnrichService(cache driven.CacheStore, fallback driven.Provider, providers ...driven.Provider) *application.EnrichService {
	return application.NewEnrichService(
		cache,
		providers,
		fallback,
		application.EnrichConfig{CacheTTL: 24 * time.Hour, ProviderTimeout: time.Second},
		nil,
		discardLogger(),
	)
}

func TestEnrich_ZeroProvidersUsesFallback(t *testing.T) {
	cache := newMockCacheStore()
	fallback := newMockProvider(model.SourceFallback, model.Record{"name": "Example"}, nil)
	svc := newEnrichService(cache, fallback)

	result, err := svc.Enrich(context.Background(), model.KindDomain, "example.com", "auto")
	require.NoError(t, err)

	assert.Equal(t, model.SourceFallback, result.Source)
	assert.False(t, result.Cached)
	assert.Equal(t, "example.com", result.Query)
	assert.Equal(t, "Example", result.Data["name"])
}

func TestEnrich_PrimaryFailsSecondaryWins(t *testing.T) {
	cache := newMockCacheStore()
	primary := newMockProvider("hunter", nil, driven.ErrProviderError)
	secondary := newMockProvider("clearbit", model.Record{"name": "Acme"}, nil)
	fallback := newMockProvider(model.SourceFallback, model.Record{"name": "Fake"}, nil)
	svc := newEnrichService(cache, fallback, primary, secondary)

	result, err := svc.Enrich(context.Background(), model.KindDomain, "acme.com", "auto")
	require.NoError(t, err)

	assert.Equal(t, "clearbit", result.Source)
	assert.Equal(t, "Acme", result.Data["name"])
	assert.Equal(t, 1, primary.callCount())
	assert.Equal(t, 1, secondary.callCount())
	assert.Zero(t, fallback.callCount())
}

func TestEnrich_NotFoundIsNonTerminal(t *testing.T) {
	cache := newMockCacheStore()
	primary := newMockProvider("hunter", nil, driven.ErrNotFound)
	secondary := newMockProvider("clearbit", nil, driven.ErrNotFound)
	fallback := newMockProvider(model.SourceFallback, model.Record{"name": "Ghost"}, nil)
	svc := newEnrichService(cache, fallback, primary, secondary)

	result, err := svc.Enrich(context.Background(), model.KindDomain, "ghost.io", "hunter")
	require.NoError(t, err)
	assert.Equal(t, model.SourceFallback, result.Source)
	assert.Equal(t, 1, secondary.callCount())
}

func TestEnrich_EmptyRecordIsNotUsable(t *testing.T) {
	primary := newMockProvider("hunter", model.Record{}, nil)
	fallback := newMockProvider(model.SourceFallback, model.Record{"name": "X"}, nil)
	svc := newEnrichService(newMockCacheStore(), fallback, primary)

	result, err := svc.Enrich(context.Background(), model.KindDomain, "acme.com", "")
	require.NoError(t, err)
	assert.Equal(t, model.SourceFallback, result.Source)
}

func TestEnrich_UnconfiguredSkippedInAuto(t *testing.T) {
	primary := newMockProvider("hunter", model.Record{"name": "H"}, nil)
	primary.configured = false
	secondary := newMockProvider("clearbit", model.Record{"name": "C"}, nil)
	svc := newEnrichService(newMockCacheStore(), nil, primary, secondary)

	result, err := svc.Enrich(context.Background(), model.KindDomain, "acme.com", "auto")
	require.NoError(t, err)
	assert.Equal(t, "clearbit", result.Source)
	assert.Zero(t, primary.callCount())
}

func TestEnrich_PreferredUnconfiguredIsTriedThenChainContinues(t *testing.T) {
	primary := newMockProvider("hunter", model.Record{"name": "H"}, nil)
	secondary := newMockProvider("clearbit", model.Record{"name": "C"}, nil)
	secondary.configured = false
	fallback := newMockProvider(model.SourceFallback, model.Record{"name": "F"}, nil)
	svc := newEnrichService(newMockCacheStore(), fallback, primary, secondary)

	result, err := svc.Enrich(context.Background(), model.KindEmail, "john@acme.com", "clearbit")
	require.NoError(t, err)
	assert.Equal(t, "hunter", result.Source)
	assert.Equal(t, 1, secondary.callCount())
}

func TestEnrich_PreferredGoesFirst(t *testing.T) {
	primary := newMockProvider("hunter", model.Record{"name": "H"}, nil)
	secondary := newMockProvider("clearbit", model.Record{"name": "C"}, nil)
	svc := newEnrichService(newMockCacheStore(), nil, primary, secondary)

	result, err := svc.Enrich(context.Background(), model.KindDomain, "acme.com", "Clearbit")
	require.NoError(t, err)
	assert.Equal(t, "clearbit", result.Source)
	assert.Zero(t, primary.callCount())
}

func TestEnrich_UnknownSourceRejected(t *testing.T) {
	primary := newMockProvider("hunter", model.Record{"name": "H"}, nil)
	cache := newMockCacheStore()
	svc := newEnrichService(cache, nil, primary)

	_, err := svc.Enrich(context.Background(), model.KindDomain, "acme.com", "zoominfo")
	require.ErrorIs(t, err, application.ErrInvalidSource)
	assert.Equal(t, application.KindInvalidFormat, application.KindOf(err))
	assert.Zero(t, primary.callCount())
}

func TestEnrich_InvalidInputDoesNoWork(t *testing.T) {
	cache := newMockCacheStore()
	primary := newMockProvider("hunter", model.Record{"name": "H"}, nil)
	svc := newEnrichService(cache, nil, primary)

	_, err := svc.EnrichEmail(context.Background(), "not-an-email", "auto")
	require.ErrorIs(t, err, validate.ErrInvalidFormat)

	_, err = svc.EnrichDomain(context.Background(), "not a domain", "auto")
	require.ErrorIs(t, err, validate.ErrInvalidFormat)

	assert.Zero(t, primary.callCount())
	assert.Zero(t, cache.puts)
}

func TestEnrich_CacheHitSkipsProviders(t *testing.T) {
	cache := newMockCacheStore()
	primary := newMockProvider("hunter", model.Record{"name": "Fresh"}, nil)
	svc := newEnrichService(cache, nil, primary)

	_, err := svc.Enrich(context.Background(), model.KindDomain, "https://Acme.com/about", "auto")
	require.NoError(t, err)

	result, err := svc.Enrich(context.Background(), model.KindDomain, "Acme.com", "auto")
	require.NoError(t, err)

	assert.True(t, result.Cached)
	assert.Equal(t, "hunter", result.Source)
	assert.Equal(t, "Fresh", result.Data["name"])
	assert.Equal(t, 1, primary.callCount())
}

func TestEnrich_WritesCacheWithExpiry(t *testing.T) {
	cache := newMockCacheStore()
	primary := newMockProvider("hunter", model.Record{"name": "Acme"}, nil)
	svc := newEnrichService(cache, nil, primary)

	before := time.Now()
	_, err := svc.Enrich(context.Background(), model.KindDomain, "acme.com", "auto")
	require.NoError(t, err)

	entry, ok := cache.entry(model.KindDomain, "acme.com")
	require.True(t, ok)
	assert.Equal(t, "hunter", entry.Source)
	require.NotNil(t, entry.ExpiresAt)
	assert.WithinDuration(t, before.Add(24*time.Hour), *entry.ExpiresAt, 5*time.Second)
}

func TestEnrich_CacheFailuresDegrade(t *testing.T) {
	cache := newMockCacheStore()
	cache.getErr = errBoom
	cache.putErr = errBoom
	primary := newMockProvider("hunter", model.Record{"name": "Acme"}, nil)
	svc := newEnrichService(cache, nil, primary)

	result, err := svc.Enrich(context.Background(), model.KindDomain, "acme.com", "auto")
	require.NoError(t, err)
	assert.Equal(t, "hunter", result.Source)
	assert.Equal(t, 1, cache.puts)
}

func TestEnrich_ExhaustedWithoutFallback(t *testing.T) {
	primary := newMockProvider("hunter", nil, driven.ErrProviderError)
	secondary := newMockProvider("clearbit", nil, driven.ErrNotFound)
	svc := newEnrichService(newMockCacheStore(), nil, primary, secondary)

	_, err := svc.Enrich(context.Background(), model.KindDomain, "acme.com", "auto")
	require.ErrorIs(t, err, application.ErrProvidersExhausted)
	assert.Equal(t, application.KindInternal, application.KindOf(err))
	assert.NotErrorIs(t, err, validate.ErrInvalidFormat)
}

func TestEnrich_CallerCancellationStillPopulatesCache(t *testing.T) {
	cache := newMockCacheStore()
	slow := newBlockingProvider("hunter")
	release := slow.release
	svc := newEnrichService(cache, nil, slow)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := svc.Enrich(ctx, model.KindDomain, "acme.com", "auto")
		done <- err
	}()

	<-slow.started
	cancel()
	err := <-done
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, application.KindCanceled, application.KindOf(err))

	close(release)
	assert.Eventually(t, func() bool {
		_, ok := cache.entry(model.KindDomain, "acme.com")
		return ok
	}, time.Second, 10*time.Millisecond)
}

func TestEnrich_ConcurrentMissesCollapse(t *testing.T) {
	slow := newBlockingProvider("hunter")
	release := slow.release
	svc := newEnrichService(newMockCacheStore(), nil, slow)

	var wg sync.WaitGroup
	results := make(chan string, 5)
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := svc.Enrich(context.Background(), model.KindDomain, "acme.com", "auto")
			if err == nil {
				results <- r.Source
			}
		}()
	}

	<-slow.started
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(results)

	count := 0
	for source := range results {
		assert.Equal(t, "hunter", source)
		count++
	}
	assert.Equal(t, 5, count)
	assert.LessOrEqual(t, slow.callCount(), 5)
	assert.GreaterOrEqual(t, slow.callCount(), 1)
}

func TestEnrich_ProviderTimeoutMovesOn(t *testing.T) {
	stuck := newBlockingProvider("hunter")
	secondary := newMockProvider("clearbit", model.Record{"name": "C"}, nil)
	svc := application.NewEnrichService(
		newMockCacheStore(),
		[]driven.Provider{stuck, secondary},
		nil,
		application.EnrichConfig{ProviderTimeout: 20 * time.Millisecond},
		nil,
		discardLogger(),
	)

	result, err := svc.Enrich(context.Background(), model.KindDomain, "acme.com", "auto")
	require.NoError(t, err)
	assert.Equal(t, "clearbit", result.Source)
}

func TestEnrich_Sources(t *testing.T) {
	svc := newEnrichService(newMockCacheStore(),
		newMockProvider(model.SourceFallback, nil, nil),
		newMockProvider("hunter", nil, nil),
		newMockProvider("clearbit", nil, nil),
	)

	assert.Equal(t, []string{"auto", "hunter", "clearbit", "fallback"}, svc.Sources())
}

// blockingProvider waits for release (or ctx) before answering.
type blockingProvider struct {
	name    string
	release chan struct{}
	started chan struct{}

	once  sync.Once
	mu    sync.Mutex
	calls int
}

func newBlockingProvider(name string) *blockingProvider {
	return &blockingProvider{name: name, release: make(chan struct{}), started: make(chan struct{})}
}

func (b *blockingProvider) Name() string     { return b.name }
func (b *blockingProvider) Configured() bool { return true }

func (b *blockingProvider) EnrichEmail(ctx context.Context, _ string) (model.Record, error) {
	return b.wait(ctx)
}

func (b *blockingProvider) EnrichDomain(ctx context.Context, _ string) (model.Record, error) {
	return b.wait(ctx)
}

func (b *blockingProvider) wait(ctx context.Context) (model.Record, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	b.once.Do(func() { close(b.started) })

	select {
	case <-b.release:
		return model.Record{"name": "Slow"}, nil
	case <-ctx.Done():
		return nil, errors.Join(driven.ErrProviderError, ctx.Err())
	}
}

func (b *blockingProvider) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}
