package postgres

import (
	"context"
	"os"
	"testing"
)

// setupTestDB connects to LEADENRICH_TEST_DATABASE_URL, applies migrations and
// truncates every table. Tests are skipped when the variable is unset.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	url := os.Getenv("LEADENRICH_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("LEADENRICH_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := NewDB(ctx, url)
	if err != nil {
		t.Fatalf("connect test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := RunMigrations(db); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	if _, err := db.Pool.Exec(ctx, `TRUNCATE usage_logs, enrichment_cache, api_keys RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}

	return db
}
