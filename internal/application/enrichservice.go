// Package application contains use-case orchestration services.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/singleflight"

	"github.com/ericfisherdev/leadenrich/internal/domain/model"
	"github.com/ericfisherdev/leadenrich/internal/domain/port/driven"
	"github.com/ericfisherdev/leadenrich/internal/domain/validate"
)

// EnrichConfig holds the orchestrator's tunables.
type EnrichConfig struct {
	// CacheTTL is added to the write time to compute a cache entry's expiry.
	// Zero stores entries without expiry.
	CacheTTL time.Duration

	// ProviderTimeout bounds each provider call. Zero means no per-call bound.
	ProviderTimeout time.Duration
}

// EnrichService resolves an email or domain to an enrichment record: cache
// first, then providers in configured order, then the fallback provider.
type EnrichService struct {
	cache     driven.CacheStore
	providers []driven.Provider
	fallback  driven.Provider
	config    EnrichConfig
	metrics   driven.Metrics
	logger    *slog.Logger
	group     singleflight.Group
	now       func() time.Time
}

// NewEnrichService creates an EnrichService. providers is the configured
// order; unconfigured providers may be included and are only tried when named
// as the preferred source. fallback is appended to every chain and may be nil.
func NewEnrichService(
	cache driven.CacheStore,
	providers []driven.Provider,
	fallback driven.Provider,
	config EnrichConfig,
	metrics driven.Metrics,
	logger *slog.Logger,
) *EnrichService {
	if metrics == nil {
		metrics = driven.NopMetrics{}
	}
	return &EnrichService{
		cache:     cache,
		providers: providers,
		fallback:  fallback,
		config:    config,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// EnrichEmail enriches an email address.
func (s *EnrichService) EnrichEmail(ctx context.Context, email, source string) (*model.Result, error) {
	return s.Enrich(ctx, model.KindEmail, email, source)
}

// EnrichDomain enriches a domain or URL.
func (s *EnrichService) EnrichDomain(ctx context.Context, domain, source string) (*model.Result, error) {
	return s.Enrich(ctx, model.KindDomain, domain, source)
}

// Enrich validates rawInput, serves a live cache entry when one exists and
// otherwise walks the provider chain. Provider failures never surface; the
// first usable record wins and is written back to the cache.
//
// The provider walk and cache write run detached from ctx, so a caller that
// goes away still leaves a populated cache behind.
func (s *EnrichService) Enrich(ctx context.Context, kind model.Kind, rawInput, preferredSource string) (*model.Result, error) {
	start := s.now()

	key, err := normalize(kind, rawInput)
	if err != nil {
		return nil, err
	}

	preference, err := s.parseSource(preferredSource)
	if err != nil {
		return nil, err
	}

	if entry := s.lookup(ctx, kind, key); entry != nil {
		s.metrics.RecordEnrichment(ctx, kind, entry.Source, true, s.now().Sub(start))
		return &model.Result{Kind: kind, Query: key, Data: entry.Data, Source: entry.Source, Cached: true}, nil
	}

	detached := context.WithoutCancel(ctx)
	flightKey := string(kind) + "|" + key + "|" + preference
	ch := s.group.DoChan(flightKey, func() (any, error) {
		return s.resolve(detached, kind, key, preference)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		result := *res.Val.(*model.Result)
		s.metrics.RecordEnrichment(ctx, kind, result.Source, false, s.now().Sub(start))
		return &result, nil
	}
}

// Sources returns the names accepted as a preferred source.
func (s *EnrichService) Sources() []string {
	names := []string{model.SourceAuto}
	for _, p := range s.providers {
		names = append(names, p.Name())
	}
	if s.fallback != nil {
		names = append(names, s.fallback.Name())
	}
	return names
}

func normalize(kind model.Kind, raw string) (string, error) {
	switch kind {
	case model.KindEmail:
		email, err := validate.NormalizeEmail(raw)
		if err != nil {
			return "", err
		}
		return email.Value, nil
	case model.KindDomain:
		return validate.NormalizeDomain(raw)
	default:
		return "", fmt.Errorf("kind %q: %w", kind, validate.ErrInvalidFormat)
	}
}

// parseSource canonicalizes a preferred source. Empty means auto.
func (s *EnrichService) parseSource(source string) (string, error) {
	source = strings.ToLower(strings.TrimSpace(source))
	if source == "" || source == model.SourceAuto {
		return model.SourceAuto, nil
	}
	if s.provider(source) != nil {
		return source, nil
	}
	return "", fmt.Errorf("source %q: %w", source, ErrInvalidSource)
}

func (s *EnrichService) provider(name string) driven.Provider {
	for _, p := range s.providers {
		if p.Name() == name {
			return p
		}
	}
	if s.fallback != nil && s.fallback.Name() == name {
		return s.fallback
	}
	return nil
}

// lookup reads the cache. Read failures are logged and treated as a miss.
func (s *EnrichService) lookup(ctx context.Context, kind model.Kind, key string) *model.CacheEntry {
	entry, err := s.cache.Get(ctx, kind, key)
	if err != nil {
		s.logger.Warn("cache read failed", "kind", kind, "query", key, "error", err)
		return nil
	}
	if entry == nil || !entry.Live(s.now()) {
		return nil
	}
	return entry
}

// candidates builds the ordered provider chain for a preference.
func (s *EnrichService) candidates(preference string) []driven.Provider {
	chain := make([]driven.Provider, 0, len(s.providers)+1)

	var preferred driven.Provider
	if preference != model.SourceAuto {
		preferred = s.provider(preference)
		chain = append(chain, preferred)
	}

	for _, p := range s.providers {
		if p == preferred || !p.Configured() {
			continue
		}
		chain = append(chain, p)
	}

	if s.fallback != nil && s.fallback != preferred {
		chain = append(chain, s.fallback)
	}
	return chain
}

func (s *EnrichService) resolve(ctx context.Context, kind model.Kind, key, preference string) (*model.Result, error) {
	var failures *multierror.Error

	for _, p := range s.candidates(preference) {
		rec, err := s.call(ctx, p, kind, key)
		if err == nil && len(rec) == 0 {
			err = fmt.Errorf("%s returned an empty record: %w", p.Name(), driven.ErrNotFound)
		}
		if err != nil {
			s.metrics.RecordProviderAttempt(ctx, p.Name(), outcome(err))
			s.logger.Info("provider failed, trying next",
				"provider", p.Name(),
				"kind", kind,
				"query", key,
				"reason", outcome(err),
				"error", err,
			)
			failures = multierror.Append(failures, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}

		s.metrics.RecordProviderAttempt(ctx, p.Name(), driven.OutcomeSuccess)
		s.store(ctx, kind, key, rec, p.Name())
		return &model.Result{Kind: kind, Query: key, Data: rec, Source: p.Name()}, nil
	}

	return nil, fmt.Errorf("enrich %s %s: %w", kind, key, errors.Join(ErrProvidersExhausted, failures.ErrorOrNil()))
}

func (s *EnrichService) call(ctx context.Context, p driven.Provider, kind model.Kind, key string) (model.Record, error) {
	if s.config.ProviderTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.ProviderTimeout)
		defer cancel()
	}

	if kind == model.KindEmail {
		return p.EnrichEmail(ctx, key)
	}
	return p.EnrichDomain(ctx, key)
}

// store writes the winning record. Write failures are logged and swallowed.
func (s *EnrichService) store(ctx context.Context, kind model.Kind, key string, rec model.Record, source string) {
	now := s.now()
	entry := model.CacheEntry{Kind: kind, Query: key, Data: rec, Source: source, CreatedAt: now}
	if s.config.CacheTTL > 0 {
		expires := now.Add(s.config.CacheTTL)
		entry.ExpiresAt = &expires
	}

	if err := s.cache.Put(ctx, entry); err != nil {
		s.logger.Warn("cache write failed", "kind", kind, "query", key, "source", source, "error", err)
	}
}

func outcome(err error) string {
	switch {
	case errors.Is(err, driven.ErrNotFound):
		return driven.OutcomeNotFound
	case errors.Is(err, driven.ErrProviderUnavailable):
		return driven.OutcomeUnavailable
	default:
		return driven.OutcomeError
	}
}
