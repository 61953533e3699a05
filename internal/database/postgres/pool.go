// Package postgres implements the Embedding Store (spec §4.D) against
// PostgreSQL with pgx/v5 and, when the vector extension is present,
// native pgvector columns (internal/database.EncodeVector/DecodeVector
// fall back to JSON otherwise).
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/grabpic/pipeline/internal/config"
)

// Repo is the pgx-backed implementation of database.Store.
type Repo struct {
	pool           *pgxpool.Pool
	nativeVector   bool
}

// Connect opens a pool against cfg.URL and probes whether the pgvector
// extension is installed.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*Repo, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL not set")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolCfg.MinConns = int32(cfg.MaxIdleConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	var hasVectorType bool
	if err := pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM pg_type WHERE typname = 'vector')").Scan(&hasVectorType); err != nil {
		pool.Close()
		return nil, fmt.Errorf("probing vector extension: %w", err)
	}

	return &Repo{pool: pool, nativeVector: hasVectorType}, nil
}

// Close releases the underlying pool.
func (r *Repo) Close() {
	r.pool.Close()
}

// Pool exposes the underlying pgx pool for callers that need raw SQL
// access outside the Store contract (the job queue, see
// internal/jobqueue).
func (r *Repo) Pool() *pgxpool.Pool {
	return r.pool
}

// EnableNativeVectors marks the store as having a working vector
// extension, switching EncodeVector/DecodeVector callers onto the
// native codec path. Migrate calls this after applying migrations with
// the result of its own probe for the vector type.
func (r *Repo) EnableNativeVectors(enabled bool) {
	r.nativeVector = enabled
}

// NativeVectors reports whether the vector extension is available.
func (r *Repo) NativeVectors() bool {
	return r.nativeVector
}
