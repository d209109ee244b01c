package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/TopThisHat/storytopia-api/internal/config"
	"github.com/TopThisHat/storytopia-api/internal/logger"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPgxPool creates a connection pool sized from configuration
func NewPgxPool(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*pgxpool.Pool, error) {
	// Fail fast if the database does not answer within 5 seconds
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres DSN: %w", err)
	}

	poolCfg.MaxConns = int32(cfg.PostgresMaxConns)
	poolCfg.MinConns = int32(cfg.PostgresMinConns)
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = cfg.PostgresMaxIdleTime
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Verify we can actually talk to the database
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logg.Info("postgres connection pool ready",
		"max_conns", poolCfg.MaxConns,
		"min_conns", poolCfg.MinConns,
		"dsn", cfg.DatabaseURL())

	return pool, nil
}
