package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/leadenrich/internal/domain/model"
	"github.com/ericfisherdev/leadenrich/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CacheStore = (*CacheRepo)(nil)

// CacheRepo is the SQLite implementation of the CacheStore port interface.
// Payloads are stored as JSON text.
type CacheRepo struct {
	db  *DB
	now func() time.Time
}

// NewCacheRepo creates a new CacheRepo backed by the given DB.
func NewCacheRepo(db *DB) *CacheRepo {
	return &CacheRepo{db: db, now: time.Now}
}

// Get returns the live entry for (kind, query). Expired rows are ignored, not deleted.
func (r *CacheRepo) Get(ctx context.Context, kind model.Kind, query string) (*model.CacheEntry, error) {
	const q = `SELECT data, source, created_at, expires_at FROM enrichment_cache
		WHERE type = ? AND query = ? AND (expires_at IS NULL OR expires_at > ?)`

	var data, source, createdAt string
	var expiresAt sql.NullString

	err := r.db.Reader.QueryRowContext(ctx, q, string(kind), query, formatTime(r.now())).
		Scan(&data, &source, &createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cache entry %s/%s: %w", kind, query, err)
	}

	entry := model.CacheEntry{Kind: kind, Query: query, Source: source}
	if err := json.Unmarshal([]byte(data), &entry.Data); err != nil {
		return nil, fmt.Errorf("decode cache entry %s/%s: %w", kind, query, err)
	}

	entry.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	entry.ExpiresAt, err = parseNullTime(expiresAt)
	if err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}

	return &entry, nil
}

// Put upserts the entry on (type, query).
func (r *CacheRepo) Put(ctx context.Context, entry model.CacheEntry) error {
	const q = `INSERT INTO enrichment_cache (type, query, data, source, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (type, query) DO UPDATE SET
			data = excluded.data,
			source = excluded.source,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at`

	data, err := json.Marshal(entry.Data)
	if err != nil {
		return fmt.Errorf("encode cache entry %s/%s: %w", entry.Kind, entry.Query, err)
	}

	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.now()
	}

	_, err = r.db.Writer.ExecContext(ctx, q,
		string(entry.Kind), entry.Query, string(data), entry.Source,
		formatTime(createdAt), nullTime(entry.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("put cache entry %s/%s: %w", entry.Kind, entry.Query, err)
	}

	return nil
}
