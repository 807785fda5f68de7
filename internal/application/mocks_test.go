package application_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ericfisherdev/leadenrich/internal/domain/model"
	"github.com/ericfisherdev/leadenrich/internal/domain/port/driven"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Provider ---

type mockProvider struct {
	name       string
	configured bool
	record     model.Record
	err        error

	mu    sync.Mutex
	calls []string
}

func newMockProvider(name string, record model.Record, err error) *mockProvider {
	return &mockProvider{name: name, configured: true, record: record, err: err}
}

func (m *mockProvider) Name() string     { return m.name }
func (m *mockProvider) Configured() bool { return m.configured }

func (m *mockProvider) EnrichEmail(_ context.Context, email string) (model.Record, error) {
	return m.answer(email)
}

func (m *mockProvider) EnrichDomain(_ context.Context, domain string) (model.Record, error) {
	return m.answer(domain)
}

func (m *mockProvider) answer(query string) (model.Record, error) {
	m.mu.Lock()
	m.calls = append(m.calls, query)
	m.mu.Unlock()

	if !m.configured {
		return nil, driven.ErrProviderUnavailable
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.record, nil
}

func (m *mockProvider) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// --- CacheStore ---

type cacheKey struct {
	kind  model.Kind
	query string
}

type mockCacheStore struct {
	mu      sync.Mutex
	entries map[cacheKey]model.CacheEntry
	getErr  error
	putErr  error
	puts    int
}

func newMockCacheStore() *mockCacheStore {
	return &mockCacheStore{entries: make(map[cacheKey]model.CacheEntry)}
}

func (m *mockCacheStore) Get(_ context.Context, kind model.Kind, query string) (*model.CacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.getErr != nil {
		return nil, m.getErr
	}
	entry, ok := m.entries[cacheKey{kind, query}]
	if !ok || !entry.Live(time.Now()) {
		return nil, nil
	}
	return &entry, nil
}

func (m *mockCacheStore) Put(_ context.Context, entry model.CacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.puts++
	if m.putErr != nil {
		return m.putErr
	}
	m.entries[cacheKey{entry.Kind, entry.Query}] = entry
	return nil
}

func (m *mockCacheStore) entry(kind model.Kind, query string) (model.CacheEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[cacheKey{kind, query}]
	return e, ok
}

// --- AccountStore ---

type mockAccountStore struct {
	mu       sync.Mutex
	byHash   map[string]*model.Account
	nextID   int64
	getErr   error
	touched  map[int64]time.Time
	deactErr error
}

func newMockAccountStore() *mockAccountStore {
	return &mockAccountStore{byHash: make(map[string]*model.Account), touched: make(map[int64]time.Time)}
}

func (m *mockAccountStore) Create(_ context.Context, name, keyHash, keyPrefix string) (model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	acct := &model.Account{ID: m.nextID, Name: name, KeyPrefix: keyPrefix, Active: true, CreatedAt: time.Now()}
	m.byHash[keyHash] = acct
	return *acct, nil
}

func (m *mockAccountStore) GetByKeyHash(_ context.Context, keyHash string) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.getErr != nil {
		return nil, m.getErr
	}
	acct, ok := m.byHash[keyHash]
	if !ok {
		return nil, nil
	}
	cp := *acct
	return &cp, nil
}

func (m *mockAccountStore) List(_ context.Context) ([]model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]model.Account, 0, len(m.byHash))
	for _, a := range m.byHash {
		out = append(out, *a)
	}
	return out, nil
}

func (m *mockAccountStore) Deactivate(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.deactErr != nil {
		return m.deactErr
	}
	for _, a := range m.byHash {
		if a.ID == id {
			a.Active = false
			return nil
		}
	}
	return driven.ErrAccountNotFound
}

func (m *mockAccountStore) TouchLastUsed(_ context.Context, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touched[id] = at
	return nil
}

func (m *mockAccountStore) touchedAt(id int64) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	at, ok := m.touched[id]
	return at, ok
}

// --- UsageStore ---

type mockUsageStore struct {
	mu        sync.Mutex
	records   []model.UsageRecord
	appendErr error
	block     chan struct{}

	statsAccount *int64
	statsSince   time.Time
}

func (m *mockUsageStore) Append(_ context.Context, rec model.UsageRecord) error {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.appendErr != nil {
		return m.appendErr
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *mockUsageStore) Stats(_ context.Context, accountID *int64, since time.Time) (model.UsageStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.statsAccount = accountID
	m.statsSince = since
	return model.UsageStats{TotalRequests: len(m.records)}, nil
}

func (m *mockUsageStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// --- RateLimiter ---

type mockLimiter struct {
	mu     sync.Mutex
	limit  int
	counts map[string]int
	err    error
}

func newMockLimiter(limit int) *mockLimiter {
	return &mockLimiter{limit: limit, counts: make(map[string]int)}
}

func (m *mockLimiter) Allow(_ context.Context, key string) (model.RateDecision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return model.RateDecision{}, m.err
	}
	m.counts[key]++
	n := m.counts[key]
	return model.RateDecision{
		Allowed:   n <= m.limit,
		Limit:     m.limit,
		Remaining: max(m.limit-n, 0),
		ResetAt:   time.Now().Add(time.Minute),
	}, nil
}

var errBoom = errors.New("boom")
