// Package store is the PostgreSQL persistence layer for races, flights,
// and track points, via pgx/v5 connection pools. It replaces the
// teacher's embedded DuckDB analytics store with a primary/replica
// pgxpool pair sized for a write-heavy ingest workload and a
// read-mostly fan-out tier.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paraglide-live/trackcore/internal/logging"
)

// ErrNotFound is returned by single-row lookups that find no matching row.
var ErrNotFound = errors.New("store: not found")

// Config holds connection and pool-sizing settings for the Store.
type Config struct {
	// PrimaryDSN is the read-write connection string for the Writer pool
	// and all mutating operations.
	PrimaryDSN string

	// ReplicaDSN is an optional read-only connection string used by the
	// fan-out tick and other hot read paths. When empty, reads are
	// served from the primary pool.
	ReplicaDSN string

	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxConns <= 0 {
		c.MaxConns = 20
	}
	if c.MinConns <= 0 {
		c.MinConns = 2
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = time.Hour
	}
	if c.ConnMaxIdleTime <= 0 {
		c.ConnMaxIdleTime = 30 * time.Minute
	}
	return c
}

// Store wraps the primary (read-write) and replica (read-only) pools.
type Store struct {
	primary *pgxpool.Pool
	replica *pgxpool.Pool
	cfg     Config
}

// Open establishes the primary pool and, if configured, the replica
// pool, verifying both with a ping before returning.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	cfg = cfg.withDefaults()

	primary, err := openPool(ctx, cfg.PrimaryDSN, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: open primary: %w", err)
	}

	replica := primary
	if cfg.ReplicaDSN != "" {
		replica, err = openPool(ctx, cfg.ReplicaDSN, cfg)
		if err != nil {
			primary.Close()
			return nil, fmt.Errorf("store: open replica: %w", err)
		}
	} else {
		logging.Warn().Msg("no replica DSN configured, fan-out reads will use the primary pool")
	}

	return &Store{primary: primary, replica: replica, cfg: cfg}, nil
}

func openPool(ctx context.Context, dsn string, cfg Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	poolCfg.MaxConnIdleTime = cfg.ConnMaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

// Close releases both pools. Closing the replica pool is a no-op when
// it aliases the primary pool.
func (s *Store) Close() {
	if s.replica != s.primary {
		s.replica.Close()
	}
	s.primary.Close()
}

// Primary returns the read-write pool for callers needing raw access
// (migrations, admin operations).
func (s *Store) Primary() *pgxpool.Pool { return s.primary }

// Replica returns the read-only pool used for hot read paths.
func (s *Store) Replica() *pgxpool.Pool { return s.replica }

// Ping verifies connectivity to the primary pool, used by the HTTP
// health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.primary.Ping(ctx)
}
