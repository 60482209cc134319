// Package db implements the persistence port (internal/persistence) against
// PostgreSQL via pgx, following the teacher's pool-wrapper-plus-repository
// layout.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a pgx connection pool shared by every repository.
type DB struct {
	pool *pgxpool.Pool
}

// New connects to PostgreSQL and returns a DB handle.
func New(ctx context.Context, dsn string) (*DB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &DB{pool: pool}, nil
}

// Close closes the database connection pool.
func (d *DB) Close() {
	d.pool.Close()
}

// Pool returns the underlying pgx pool, shared freely per SPEC_FULL.md §5's
// "shared-resource policy" (the persistence port provides its own pooling).
func (d *DB) Pool() *pgxpool.Pool {
	return d.pool
}

// Players returns the PlayerRepository implementation backed by this pool.
func (d *DB) Players() *PlayerRepo {
	return &PlayerRepo{pool: d.pool}
}

// PlayerData returns the PlayerDataRepository implementation backed by this pool.
func (d *DB) PlayerData() *PlayerDataRepo {
	return &PlayerDataRepo{pool: d.pool}
}

// GalaxyAtWar returns the GalaxyAtWarRepository implementation backed by this pool.
func (d *DB) GalaxyAtWar() *GalaxyAtWarRepo {
	return &GalaxyAtWarRepo{pool: d.pool}
}

// Leaderboard returns the LeaderboardDataRepository implementation backed by this pool.
func (d *DB) Leaderboard() *LeaderboardRepo {
	return &LeaderboardRepo{pool: d.pool}
}
