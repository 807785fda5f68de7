package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/ericfisherdev/leadenrich/internal/domain/model"
	"github.com/ericfisherdev/leadenrich/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.UsageStore = (*UsageRepo)(nil)

// UsageRepo is the PostgreSQL implementation of the UsageStore port interface.
type UsageRepo struct {
	db  *DB
	now func() time.Time
}

// NewUsageRepo creates a new UsageRepo backed by the given DB.
func NewUsageRepo(db *DB) *UsageRepo {
	return &UsageRepo{db: db, now: time.Now}
}

// Append inserts a usage record.
func (r *UsageRepo) Append(ctx context.Context, rec model.UsageRecord) error {
	const query = `INSERT INTO usage_logs (api_key_id, endpoint, request_data, response_status, created_at)
		VALUES ($1, $2, $3::jsonb, $4, $5)`

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.now()
	}

	var requestData *string
	if len(rec.RequestData) > 0 {
		s := string(rec.RequestData)
		requestData = &s
	}

	if _, err := r.db.Pool.Exec(ctx, query, rec.AccountID, rec.Endpoint, requestData, rec.ResponseStatus, createdAt.UTC()); err != nil {
		return fmt.Errorf("append usage record %s: %w", rec.Endpoint, err)
	}
	return nil
}

// Stats aggregates usage since the given instant. Days are bucketed in UTC.
func (r *UsageRepo) Stats(ctx context.Context, accountID *int64, since time.Time) (model.UsageStats, error) {
	const summary = `SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE endpoint = $1),
			COUNT(*) FILTER (WHERE endpoint = $2),
			COUNT(*) FILTER (WHERE created_at >= $3),
			(SELECT COUNT(*) FROM api_keys WHERE is_active AND ($5::bigint IS NULL OR id = $5)),
			COUNT(*) FILTER (WHERE response_status BETWEEN 200 AND 299),
			COUNT(*) FILTER (WHERE response_status >= 400),
			MIN(created_at),
			MAX(created_at)
		FROM usage_logs
		WHERE created_at >= $4 AND ($5::bigint IS NULL OR api_key_id = $5)`

	const daily = `SELECT
			to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day,
			COUNT(*),
			COUNT(*) FILTER (WHERE endpoint = $1),
			COUNT(*) FILTER (WHERE endpoint = $2)
		FROM usage_logs
		WHERE created_at >= $3 AND ($4::bigint IS NULL OR api_key_id = $4)
		GROUP BY day
		ORDER BY day DESC`

	now := r.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var stats model.UsageStats
	err := r.db.Pool.QueryRow(ctx, summary,
		model.OperationEnrichEmail, model.OperationEnrichDomain, today, since.UTC(), accountID,
	).Scan(
		&stats.TotalRequests, &stats.EmailRequests, &stats.DomainRequests, &stats.RequestsToday,
		&stats.ActiveKeys, &stats.SuccessCount, &stats.ErrorCount, &stats.FirstRequest, &stats.LastRequest,
	)
	if err != nil {
		return model.UsageStats{}, fmt.Errorf("query usage summary: %w", err)
	}
	stats.FirstRequest = utcPtr(stats.FirstRequest)
	stats.LastRequest = utcPtr(stats.LastRequest)

	rows, err := r.db.Pool.Query(ctx, daily,
		model.OperationEnrichEmail, model.OperationEnrichDomain, since.UTC(), accountID,
	)
	if err != nil {
		return model.UsageStats{}, fmt.Errorf("query daily usage: %w", err)
	}
	defer rows.Close()

	stats.Daily = []model.DailyUsage{}
	for rows.Next() {
		var d model.DailyUsage
		if err := rows.Scan(&d.Date, &d.Requests, &d.Emails, &d.Domains); err != nil {
			return model.UsageStats{}, fmt.Errorf("scan daily usage: %w", err)
		}
		stats.Daily = append(stats.Daily, d)
	}
	if err := rows.Err(); err != nil {
		return model.UsageStats{}, fmt.Errorf("iterate daily usage: %w", err)
	}

	return stats, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
