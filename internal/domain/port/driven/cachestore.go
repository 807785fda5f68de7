package driven

import (
	"context"

	"github.com/ericfisherdev/leadenrich/internal/domain/model"
)

// CacheStore defines the driven port for the enrichment cache.
// At most one entry exists per (kind, query); Put overwrites it.
type CacheStore interface {
	// Get returns the live entry for (kind, query), or nil, nil when the entry
	// is absent or expired.
	Get(ctx context.Context, kind model.Kind, query string) (*model.CacheEntry, error)

	// Put upserts the entry, replacing data, source and expiry and refreshing created_at.
	Put(ctx context.Context, entry model.CacheEntry) error
}
