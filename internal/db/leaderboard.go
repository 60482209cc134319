package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/blazerelay/server/internal/persistence"
)

// LeaderboardRepo implements persistence.LeaderboardDataRepository.
type LeaderboardRepo struct {
	pool *pgxpool.Pool
}

// SetTypeBulk replaces every stored entry for ty with entries, matching
// the original's LeaderboardData::set_ty_bulk contract.
func (r *LeaderboardRepo) SetTypeBulk(ctx context.Context, ty persistence.LeaderboardType, entries []persistence.LeaderboardEntry) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: beginning leaderboard bulk replace: %v", persistence.ErrUnavailable, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM leaderboard_data WHERE ty = $1`, ty); err != nil {
		return fmt.Errorf("%w: clearing leaderboard type %d: %v", persistence.ErrUnavailable, ty, err)
	}

	if len(entries) > 0 {
		batch := &pgx.Batch{}
		for _, e := range entries {
			batch.Queue(`INSERT INTO leaderboard_data (ty, player_id, value) VALUES ($1, $2, $3)`,
				ty, e.PlayerID, e.Value)
		}
		br := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("%w: inserting leaderboard entry: %v", persistence.ErrUnavailable, err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("%w: closing leaderboard batch: %v", persistence.ErrUnavailable, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: committing leaderboard bulk replace: %v", persistence.ErrUnavailable, err)
	}
	return nil
}

// AllPlayerIDs pages through the player table in id order, used by the
// leaderboard compute pass (spec.md §4.H, batches of 20).
func (r *LeaderboardRepo) AllPlayerIDs(ctx context.Context, offset, limit int) ([]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM players ORDER BY id ASC OFFSET $1 LIMIT $2`, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: paging players: %v", persistence.ErrUnavailable, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: scanning player id: %v", persistence.ErrUnavailable, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
