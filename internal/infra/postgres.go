package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/greg5320/mappool/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPostgres creates a pgx connection pool from the given config and wraps
// it as a repository.DB.
func NewPostgres(ctx context.Context, cfg *Config) (*repository.PgDB, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	poolCfg.MaxConns = 20
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return repository.NewPgDB(pool), nil
}
