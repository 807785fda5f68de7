package main

import (
	"context"
	"fmt"
	"log/slog"

	pgadapter "github.com/ericfisherdev/leadenrich/internal/adapter/driven/postgres"
	sqliteadapter "github.com/ericfisherdev/leadenrich/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/leadenrich/internal/config"
	"github.com/ericfisherdev/leadenrich/internal/domain/port/driven"
)

// stores bundles the persistence ports of the selected backend.
type stores struct {
	accounts driven.AccountStore
	cache    driven.CacheStore
	usage    driven.UsageStore
	ping     func(ctx context.Context) error
	close    func() error
}

// openStores opens the configured backend and applies pending migrations.
func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*stores, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		db, err := pgadapter.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		version, err := pgadapter.RunMigrations(db)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		logger.Info("database opened", "driver", cfg.DBDriver, "schema_version", version)

		return &stores{
			accounts: pgadapter.NewAccountRepo(db),
			cache:    pgadapter.NewCacheRepo(db),
			usage:    pgadapter.NewUsageRepo(db),
			ping:     db.Ping,
			close:    db.Close,
		}, nil

	case config.DriverSQLite:
		db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
		if err != nil {
			return nil, err
		}
		version, err := sqliteadapter.RunMigrations(db.Writer)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		logger.Info("database opened", "driver", cfg.DBDriver, "path", cfg.DBPath, "schema_version", version)

		return &stores{
			accounts: sqliteadapter.NewAccountRepo(db),
			cache:    sqliteadapter.NewCacheRepo(db),
			usage:    sqliteadapter.NewUsageRepo(db),
			ping:     db.Ping,
			close:    db.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.DBDriver)
	}
}
