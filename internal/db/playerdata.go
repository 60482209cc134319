package db

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/blazerelay/server/internal/persistence"
)

// PlayerDataRepo implements persistence.PlayerDataRepository.
//
// Key scheme for the derived leaderboard queries (SPEC_FULL.md §9):
//
//	class.<Name>.level        -> decimal level
//	class.<Name>.promotions   -> decimal promotion count
//	char.<id>.kit_name        -> kit name string
//	char.<id>.deployed        -> "true" | "false"
//	Completion                -> comma-separated challenge progress, field 1 is points
type PlayerDataRepo struct {
	pool *pgxpool.Pool
}

// All returns every key/value pair for a player.
func (r *PlayerDataRepo) All(ctx context.Context, playerID int64) (map[string]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT key, value FROM player_data WHERE player_id = $1`, playerID)
	if err != nil {
		return nil, fmt.Errorf("%w: listing player data for %d: %v", persistence.ErrUnavailable, playerID, err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("%w: scanning player data for %d: %v", persistence.ErrUnavailable, playerID, err)
		}
		out[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating player data for %d: %v", persistence.ErrUnavailable, playerID, err)
	}
	return out, nil
}

// Get returns a single key's value, or "" if absent.
func (r *PlayerDataRepo) Get(ctx context.Context, playerID int64, key string) (string, error) {
	var value string
	err := r.pool.QueryRow(ctx,
		`SELECT value FROM player_data WHERE player_id = $1 AND key = $2`, playerID, key,
	).Scan(&value)
	if err != nil {
		if strings.Contains(err.Error(), "no rows") {
			return "", nil
		}
		return "", fmt.Errorf("%w: getting %q for player %d: %v", persistence.ErrUnavailable, key, playerID, err)
	}
	return value, nil
}

// Set upserts a single key.
func (r *PlayerDataRepo) Set(ctx context.Context, playerID int64, key, value string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO player_data (player_id, key, value) VALUES ($1, $2, $3)
		 ON CONFLICT (player_id, key) DO UPDATE SET value = EXCLUDED.value`,
		playerID, key, value)
	if err != nil {
		return fmt.Errorf("%w: setting %q for player %d: %v", persistence.ErrUnavailable, key, playerID, err)
	}
	return nil
}

// SetBulk upserts many keys for a player in one round trip.
func (r *PlayerDataRepo) SetBulk(ctx context.Context, playerID int64, kv map[string]string) error {
	if len(kv) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for k, v := range kv {
		batch.Queue(
			`INSERT INTO player_data (player_id, key, value) VALUES ($1, $2, $3)
			 ON CONFLICT (player_id, key) DO UPDATE SET value = EXCLUDED.value`,
			playerID, k, v)
	}
	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("%w: bulk-setting player data for %d: %v", persistence.ErrUnavailable, playerID, err)
		}
	}
	return nil
}

// Delete removes a single key.
func (r *PlayerDataRepo) Delete(ctx context.Context, playerID int64, key string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM player_data WHERE player_id = $1 AND key = $2`, playerID, key)
	if err != nil {
		return fmt.Errorf("%w: deleting %q for player %d: %v", persistence.ErrUnavailable, key, playerID, err)
	}
	return nil
}

// GetClasses derives per-class progress from class*/char* prefixed keys for
// N7Rating computation (spec.md §4.H).
func (r *PlayerDataRepo) GetClasses(ctx context.Context, playerID int64) ([]persistence.ClassProgress, error) {
	all, err := r.All(ctx, playerID)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]*persistence.ClassProgress)
	classOf := func(name string) *persistence.ClassProgress {
		if c, ok := byName[name]; ok {
			return c
		}
		c := &persistence.ClassProgress{Name: name}
		byName[name] = c
		return c
	}

	var deployedKits []string
	for key, value := range all {
		switch {
		case strings.HasPrefix(key, "class.") && strings.HasSuffix(key, ".level"):
			name := strings.TrimSuffix(strings.TrimPrefix(key, "class."), ".level")
			if v, err := strconv.ParseUint(value, 10, 32); err == nil {
				classOf(name).Level = uint32(v)
			}
		case strings.HasPrefix(key, "class.") && strings.HasSuffix(key, ".promotions"):
			name := strings.TrimSuffix(strings.TrimPrefix(key, "class."), ".promotions")
			if v, err := strconv.ParseUint(value, 10, 32); err == nil {
				classOf(name).Promotions = uint32(v)
			}
		case strings.HasPrefix(key, "char.") && strings.HasSuffix(key, ".kit_name"):
			id := strings.TrimSuffix(strings.TrimPrefix(key, "char."), ".kit_name")
			if all["char."+id+".deployed"] == "true" {
				deployedKits = append(deployedKits, value)
			}
		}
	}

	out := make([]persistence.ClassProgress, 0, len(byName))
	for name, c := range byName {
		for _, kit := range deployedKits {
			if strings.Contains(kit, name) {
				c.Deployed = true
				break
			}
		}
		out = append(out, *c)
	}
	return out, nil
}

// GetChallengePoints returns the second comma-separated field of the
// player's Completion key, or 0 if absent or unparsable.
func (r *PlayerDataRepo) GetChallengePoints(ctx context.Context, playerID int64) (uint32, error) {
	completion, err := r.Get(ctx, playerID, "Completion")
	if err != nil {
		return 0, err
	}
	fields := strings.Split(completion, ",")
	if len(fields) < 2 {
		return 0, nil
	}
	v, err := strconv.ParseUint(strings.TrimSpace(fields[1]), 10, 32)
	if err != nil {
		return 0, nil
	}
	return uint32(v), nil
}
