package server

import (
	"context"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joseph-ayodele/vitals-tracker/internal/common"
	repo "github.com/joseph-ayodele/vitals-tracker/internal/repository"
)

// ConnectDB opens the configured database and brings its schema up to date.
// The returned func closes everything it opened.
func ConnectDB(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*entsql.Driver, func(), error) {
	var (
		drv  *entsql.Driver
		pool *pgxpool.Pool
		err  error
	)
	switch cfg.Driver {
	case "sqlite":
		drv, err = repo.OpenSQLite(ctx, cfg.DSN, logger)
	default:
		drv, pool, err = repo.Open(ctx, repo.Config{
			DSN:              cfg.DSN,
			MaxConns:         cfg.MaxConns,
			MinConns:         cfg.MinConns,
			MaxConnLifetime:  cfg.MaxConnLifetime,
			MaxConnIdleTime:  cfg.MaxConnIdleTime,
			DialTimeout:      cfg.DialTimeout,
			StatementTimeout: cfg.StatementTimeout,
		}, logger)
	}
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() { repo.Close(drv, pool, logger) }

	if err := repo.Migrate(ctx, drv, logger); err != nil {
		closeFn()
		return nil, nil, err
	}
	return drv, closeFn, nil
}

// PingDB pings the database to ensure it's responsive
func PingDB(ctx context.Context, drv *entsql.Driver, logger *slog.Logger, timeout time.Duration) error {
	return repo.HealthCheck(ctx, drv, timeout, logger)
}
