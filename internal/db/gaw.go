package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/blazerelay/server/internal/persistence"
)

// gawMin and gawMax are the clamp bounds for every region bucket
// (spec.md §8 "GaW clamping").
const (
	gawMin uint16 = 5000
	gawMax uint16 = 10099
)

func clampGaW(v int32) uint16 {
	if v < int32(gawMin) {
		return gawMin
	}
	if v > int32(gawMax) {
		return gawMax
	}
	return uint16(v)
}

// GalaxyAtWarRepo implements persistence.GalaxyAtWarRepository.
type GalaxyAtWarRepo struct {
	pool *pgxpool.Pool
}

func scanGaW(row pgx.Row, playerID int64) (*persistence.GalaxyAtWar, time.Time, error) {
	var g persistence.GalaxyAtWar
	var a, b, c, d, e int32
	var lastDecay time.Time
	g.PlayerID = playerID
	err := row.Scan(&a, &b, &c, &d, &e, &lastDecay)
	if err != nil {
		return nil, time.Time{}, err
	}
	g.GroupA, g.GroupB, g.GroupC, g.GroupD, g.GroupE = uint16(a), uint16(b), uint16(c), uint16(d), uint16(e)
	return &g, lastDecay, nil
}

// GetOrCreate returns the player's bucket, creating a default row with
// decay applied for elapsed time since last_decay is meaningless on
// creation (last_decay is reset to now).
func (r *GalaxyAtWarRepo) GetOrCreate(ctx context.Context, playerID int64, decay float32) (*persistence.GalaxyAtWar, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT group_a, group_b, group_c, group_d, group_e, last_decay
		 FROM galaxy_at_war WHERE player_id = $1`, playerID)
	g, _, err := scanGaW(row, playerID)
	if err == nil {
		return g, nil
	}

	_, insErr := r.pool.Exec(ctx,
		`INSERT INTO galaxy_at_war (player_id) VALUES ($1) ON CONFLICT (player_id) DO NOTHING`, playerID)
	if insErr != nil {
		return nil, fmt.Errorf("%w: creating gaw row for %d: %v", persistence.ErrUnavailable, playerID, insErr)
	}
	return &persistence.GalaxyAtWar{
		PlayerID: playerID,
		GroupA:   gawMin, GroupB: gawMin, GroupC: gawMin, GroupD: gawMin, GroupE: gawMin,
	}, nil
}

// ApplyDecay reduces every bucket toward gawMin by decay fraction of
// elapsed days since last_decay, clamped, and resets last_decay to now.
func (r *GalaxyAtWarRepo) ApplyDecay(ctx context.Context, playerID int64, decay float32) (*persistence.GalaxyAtWar, error) {
	g, err := r.GetOrCreate(ctx, playerID, decay)
	if err != nil {
		return nil, err
	}
	if decay <= 0 {
		return g, nil
	}

	var lastDecay time.Time
	if err := r.pool.QueryRow(ctx,
		`SELECT last_decay FROM galaxy_at_war WHERE player_id = $1`, playerID).Scan(&lastDecay); err != nil {
		return nil, fmt.Errorf("%w: reading last decay for %d: %v", persistence.ErrUnavailable, playerID, err)
	}
	days := float32(time.Since(lastDecay).Hours() / 24)

	apply := func(v uint16) uint16 {
		reduced := float32(v) - float32(v-gawMin)*decay*days
		return clampGaW(int32(reduced))
	}
	g.GroupA, g.GroupB, g.GroupC, g.GroupD, g.GroupE =
		apply(g.GroupA), apply(g.GroupB), apply(g.GroupC), apply(g.GroupD), apply(g.GroupE)

	_, err = r.pool.Exec(ctx,
		`UPDATE galaxy_at_war SET group_a=$1, group_b=$2, group_c=$3, group_d=$4, group_e=$5, last_decay=now()
		 WHERE player_id=$6`,
		g.GroupA, g.GroupB, g.GroupC, g.GroupD, g.GroupE, playerID)
	if err != nil {
		return nil, fmt.Errorf("%w: applying decay for %d: %v", persistence.ErrUnavailable, playerID, err)
	}
	return g, nil
}

// Add increases each of the five buckets by delta, clamped to
// [gawMin, gawMax], and persists the result.
func (r *GalaxyAtWarRepo) Add(ctx context.Context, playerID int64, delta [5]uint16) (*persistence.GalaxyAtWar, error) {
	g, err := r.GetOrCreate(ctx, playerID, 0)
	if err != nil {
		return nil, err
	}

	g.GroupA = clampGaW(int32(g.GroupA) + int32(delta[0]))
	g.GroupB = clampGaW(int32(g.GroupB) + int32(delta[1]))
	g.GroupC = clampGaW(int32(g.GroupC) + int32(delta[2]))
	g.GroupD = clampGaW(int32(g.GroupD) + int32(delta[3]))
	g.GroupE = clampGaW(int32(g.GroupE) + int32(delta[4]))

	_, err = r.pool.Exec(ctx,
		`UPDATE galaxy_at_war SET group_a=$1, group_b=$2, group_c=$3, group_d=$4, group_e=$5
		 WHERE player_id=$6`,
		g.GroupA, g.GroupB, g.GroupC, g.GroupD, g.GroupE, playerID)
	if err != nil {
		return nil, fmt.Errorf("%w: adding gaw delta for %d: %v", persistence.ErrUnavailable, playerID, err)
	}
	return g, nil
}
