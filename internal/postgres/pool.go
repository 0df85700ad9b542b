// Package postgres builds the shared pgx connection pool and instruments
// every query with tracing, logging and per-request accounting.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolOption customises NewPool.
type PoolOption func(*poolConfig)

type poolConfig struct {
	slowQuery time.Duration
	maxConns  int32
}

// WithSlowQueryLog logs only failed queries and those slower than d.
// The default logs every query.
func WithSlowQueryLog(d time.Duration) PoolOption {
	return func(c *poolConfig) { c.slowQuery = d }
}

// WithMaxConns caps the pool size.
func WithMaxConns(n int32) PoolOption {
	return func(c *poolConfig) { c.maxConns = n }
}

// NewPool parses databaseURL, installs the query tracer and verifies the
// connection.
func NewPool(ctx context.Context, databaseURL string, opts ...PoolOption) (*pgxpool.Pool, error) {
	var pc poolConfig
	for _, o := range opts {
		o(&pc)
	}

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.ConnConfig.Tracer = newQueryTracer(otelpgx.NewTracer(), pc.slowQuery)
	if pc.maxConns > 0 {
		cfg.MaxConns = pc.maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.NewWithConfig: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}
