package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

// memoryDSN names an in-memory database shared by every connection opened with
// the same test name, so the reader pool sees the writer's rows.
func memoryDSN(t *testing.T) string {
	return fmt.Sprintf(
		"file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)",
		url.PathEscape(t.Name()),
	)
}

func openPool(t *testing.T, dsn string, maxConns int) *sql.DB {
	t.Helper()

	pool, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	pool.SetMaxOpenConns(maxConns)
	require.NoError(t, pool.PingContext(context.Background()))

	return pool
}

// setupTestDB returns a migrated leadenrich database private to the calling test.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	dsn := memoryDSN(t)
	db := &DB{Writer: openPool(t, dsn, 1), path: dsn}
	db.Reader = openPool(t, dsn, 4)
	t.Cleanup(func() { _ = db.Close() })

	_, err := RunMigrations(db.Writer)
	require.NoError(t, err)

	return db
}
