package sqlite

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// migrationsTable records applied leadenrich schema versions.
const migrationsTable = "leadenrich_migrations"

//go:embed migrations/*.sql
var schemaFS embed.FS

// RunMigrations brings the api_keys, usage_logs and enrichment_cache schema up
// to date and returns the resulting schema version. A schema left dirty by an
// interrupted run is reported instead of being migrated further.
func RunMigrations(db *sql.DB) (uint, error) {
	source, err := iofs.New(schemaFS, "migrations")
	if err != nil {
		return 0, fmt.Errorf("open leadenrich schema: %w", err)
	}

	target, err := migratesqlite.WithInstance(db, &migratesqlite.Config{MigrationsTable: migrationsTable})
	if err != nil {
		return 0, fmt.Errorf("prepare sqlite schema target: %w", err)
	}

	m, err := migrate.NewWithInstance("leadenrich-schema", source, "sqlite", target)
	if err != nil {
		return 0, fmt.Errorf("create migrator: %w", err)
	}

	if _, dirty, err := m.Version(); err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, fmt.Errorf("read schema version: %w", err)
	} else if dirty {
		return 0, errors.New("migrate sqlite schema: schema is dirty")
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("migrate sqlite schema: %w", err)
	}

	version, _, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}
