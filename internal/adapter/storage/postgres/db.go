package postgres

import (
	"context"
	"fmt"

	"settlement-kernel/config"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Pool is the subset of *pgxpool.Pool the repositories use. pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// NewPool creates a PostgreSQL connection pool using pgx.
func NewPool(ctx context.Context, cfg config.DatabaseConfig, log zerolog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("dbname", cfg.DBName).
		Int32("max_conns", cfg.MaxConns).
		Msg("PostgreSQL connection pool established")

	return pool, nil
}

// Migrate creates the kernel tables when they do not exist yet.
func Migrate(ctx context.Context, pool Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS agent_balances (
		agent_id   BIGINT      NOT NULL,
		currency   TEXT        NOT NULL,
		balance    BIGINT      NOT NULL,
		tick       BIGINT      NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (agent_id, currency)
	)`,
	`CREATE TABLE IF NOT EXISTS wallet_operations (
		run_id            UUID   NOT NULL,
		seq               BIGINT NOT NULL,
		tick              BIGINT NOT NULL,
		agent_id          BIGINT NOT NULL,
		currency          TEXT   NOT NULL,
		delta             BIGINT NOT NULL,
		memo              TEXT   NOT NULL,
		resulting_balance BIGINT NOT NULL,
		PRIMARY KEY (run_id, seq)
	)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id          UUID        PRIMARY KEY,
		action      TEXT        NOT NULL,
		agent_id    BIGINT,
		resource_id TEXT,
		tick        BIGINT      NOT NULL,
		details     JSONB,
		created_at  TIMESTAMPTZ NOT NULL
	)`,
}
