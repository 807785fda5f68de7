package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ericfisherdev/leadenrich/internal/domain/model"
	"github.com/ericfisherdev/leadenrich/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CacheStore = (*CacheRepo)(nil)

// CacheRepo is the PostgreSQL implementation of the CacheStore port interface.
type CacheRepo struct {
	db  *DB
	now func() time.Time
}

// NewCacheRepo creates a new CacheRepo backed by the given DB.
func NewCacheRepo(db *DB) *CacheRepo {
	return &CacheRepo{db: db, now: time.Now}
}

// Get returns the live entry for (kind, query).
func (r *CacheRepo) Get(ctx context.Context, kind model.Kind, query string) (*model.CacheEntry, error) {
	const q = `SELECT data, source, created_at, expires_at FROM enrichment_cache
		WHERE type = $1 AND query = $2 AND (expires_at IS NULL OR expires_at > $3)`

	entry := model.CacheEntry{Kind: kind, Query: query}
	var expiresAt *time.Time

	err := r.db.Pool.QueryRow(ctx, q, string(kind), query, r.now().UTC()).
		Scan(&entry.Data, &entry.Source, &entry.CreatedAt, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cache entry %s/%s: %w", kind, query, err)
	}

	entry.CreatedAt = entry.CreatedAt.UTC()
	entry.ExpiresAt = utcPtr(expiresAt)
	return &entry, nil
}

// Put upserts the entry on (type, query).
func (r *CacheRepo) Put(ctx context.Context, entry model.CacheEntry) error {
	const q = `INSERT INTO enrichment_cache (type, query, data, source, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (type, query) DO UPDATE SET
			data = EXCLUDED.data,
			source = EXCLUDED.source,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at`

	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.now()
	}

	data := entry.Data
	if data == nil {
		data = model.Record{}
	}

	_, err := r.db.Pool.Exec(ctx, q,
		string(entry.Kind), entry.Query, data, entry.Source, createdAt.UTC(), entry.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("put cache entry %s/%s: %w", entry.Kind, entry.Query, err)
	}
	return nil
}
