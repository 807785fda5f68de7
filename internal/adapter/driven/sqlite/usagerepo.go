package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ericfisherdev/leadenrich/internal/domain/model"
	"github.com/ericfisherdev/leadenrich/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.UsageStore = (*UsageRepo)(nil)

// UsageRepo is the SQLite implementation of the UsageStore port interface.
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
	const query = `INSERT INTO usage_logs (api_key_id, endpoint, request_data, response_status, created_at) VALUES (?, ?, ?, ?, ?)`

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.now()
	}

	var accountID sql.NullInt64
	if rec.AccountID != nil {
		accountID = sql.NullInt64{Int64: *rec.AccountID, Valid: true}
	}

	var requestData sql.NullString
	if len(rec.RequestData) > 0 {
		requestData = sql.NullString{String: string(rec.RequestData), Valid: true}
	}

	_, err := r.db.Writer.ExecContext(ctx, query, accountID, rec.Endpoint, requestData, rec.ResponseStatus, formatTime(createdAt))
	if err != nil {
		return fmt.Errorf("append usage record %s: %w", rec.Endpoint, err)
	}
	return nil
}

// Stats aggregates usage since the given instant. Days are bucketed in UTC.
func (r *UsageRepo) Stats(ctx context.Context, accountID *int64, since time.Time) (model.UsageStats, error) {
	const summary = `SELECT
			COUNT(*),
			COUNT(CASE WHEN endpoint = ? THEN 1 END),
			COUNT(CASE WHEN endpoint = ? THEN 1 END),
			COUNT(CASE WHEN created_at >= ? THEN 1 END),
			(SELECT COUNT(*) FROM api_keys WHERE is_active = 1 AND (? IS NULL OR id = ?)),
			COUNT(CASE WHEN response_status >= 200 AND response_status < 300 THEN 1 END),
			COUNT(CASE WHEN response_status >= 400 THEN 1 END),
			MIN(created_at),
			MAX(created_at)
		FROM usage_logs
		WHERE created_at >= ? AND (? IS NULL OR api_key_id = ?)`

	const daily = `SELECT
			substr(created_at, 1, 10) AS day,
			COUNT(*),
			COUNT(CASE WHEN endpoint = ? THEN 1 END),
			COUNT(CASE WHEN endpoint = ? THEN 1 END)
		FROM usage_logs
		WHERE created_at >= ? AND (? IS NULL OR api_key_id = ?)
		GROUP BY day
		ORDER BY day DESC`

	var acct sql.NullInt64
	if accountID != nil {
		acct = sql.NullInt64{Int64: *accountID, Valid: true}
	}

	now := r.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	sinceStr := formatTime(since)

	var stats model.UsageStats
	var first, last sql.NullString
	err := r.db.Reader.QueryRowContext(ctx, summary,
		model.OperationEnrichEmail, model.OperationEnrichDomain, formatTime(today),
		acct, acct,
		sinceStr, acct, acct,
	).Scan(
		&stats.TotalRequests, &stats.EmailRequests, &stats.DomainRequests, &stats.RequestsToday,
		&stats.ActiveKeys, &stats.SuccessCount, &stats.ErrorCount, &first, &last,
	)
	if err != nil {
		return model.UsageStats{}, fmt.Errorf("query usage summary: %w", err)
	}

	if stats.FirstRequest, err = parseNullTime(first); err != nil {
		return model.UsageStats{}, fmt.Errorf("parse first request: %w", err)
	}
	if stats.LastRequest, err = parseNullTime(last); err != nil {
		return model.UsageStats{}, fmt.Errorf("parse last request: %w", err)
	}

	rows, err := r.db.Reader.QueryContext(ctx, daily,
		model.OperationEnrichEmail, model.OperationEnrichDomain, sinceStr, acct, acct,
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
