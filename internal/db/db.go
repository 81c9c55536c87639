package db

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultMaxConns = 10
	defaultMinConns = 2
	connectTimeout  = 5 * time.Second
)

// PoolOptions sizes the connection pool. Zero values fall back to defaults.
type PoolOptions struct {
	MaxConns int32
	MinConns int32
	// StatementTimeout caps any single statement. Row-lock waits inside an
	// escrow transaction are bounded separately by the store's lock timeout.
	StatementTimeout time.Duration
}

// Connect opens a pgx pool and pings it. Sessions run in UTC so escrow
// expires_at comparisons do not depend on the server's zone.
func Connect(ctx context.Context, dbURL string, opts PoolOptions) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	cfg.MaxConns = defaultMaxConns
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	cfg.MinConns = min(int32(defaultMinConns), cfg.MaxConns)
	if opts.MinConns > 0 && opts.MinConns <= cfg.MaxConns {
		cfg.MinConns = opts.MinConns
	}
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute

	params := cfg.ConnConfig.RuntimeParams
	params["application_name"] = "escrow-ledger"
	params["timezone"] = "UTC"
	if opts.StatementTimeout > 0 {
		params["statement_timeout"] = strconv.FormatInt(opts.StatementTimeout.Milliseconds(), 10)
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}
