// Package leaderboard implements the ranked-player cache: periodic
// recomputation and three read shapes (top, centered, filtered), grounded
// on original_source/src/services/leaderboard/mod.rs (spec.md §4.H).
package leaderboard

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/blazerelay/server/internal/persistence"
)

// ttl is the group lifetime before a cached result is considered stale
// (spec.md §3: "Group lifetime: 1 hour").
const ttl = time.Hour

// pageSize is the player table page size used by compute (spec.md §4.H).
const pageSize = 20

// Entry is one ranked row.
type Entry struct {
	PlayerID    int64
	DisplayName string
	Rank        int
	Value       uint32
}

type group struct {
	mu      sync.RWMutex
	entries []Entry
	expires time.Time
}

func (g *group) snapshot() ([]Entry, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	stale := time.Now().After(g.expires)
	return g.entries, stale
}

// Cache serves the two leaderboard types (N7Rating, ChallengePoints) from
// an in-memory cache recomputed on demand, collapsing concurrent recompute
// triggers with singleflight (replacing the original's hand-rolled
// "computing" boolean with the idiomatic Go equivalent, SPEC_FULL.md §4).
type Cache struct {
	players         persistence.PlayerRepository
	playerData      persistence.PlayerDataRepository
	leaderboardData persistence.LeaderboardDataRepository

	groups map[persistence.LeaderboardType]*group
	sf     singleflight.Group
}

// New returns a Cache with both leaderboard types cold (empty, expired).
func New(players persistence.PlayerRepository, playerData persistence.PlayerDataRepository, leaderboardData persistence.LeaderboardDataRepository) *Cache {
	return &Cache{
		players:         players,
		playerData:      playerData,
		leaderboardData: leaderboardData,
		groups: map[persistence.LeaderboardType]*group{
			persistence.LeaderboardN7Rating:        {},
			persistence.LeaderboardChallengePoints: {},
		},
	}
}

func (c *Cache) groupFor(ty persistence.LeaderboardType) *group {
	g, ok := c.groups[ty]
	if !ok {
		g = &group{}
		c.groups[ty] = g
	}
	return g
}

// ensureFresh triggers an asynchronous recompute if the group is stale,
// deduplicating concurrent triggers via singleflight. It never blocks the
// caller (spec.md §4.H step 2: "return the stale values").
func (c *Cache) ensureFresh(ty persistence.LeaderboardType) {
	g := c.groupFor(ty)
	if _, stale := g.snapshot(); !stale {
		return
	}

	key := fmt.Sprintf("%d", ty)
	c.sf.DoChan(key, func() (any, error) {
		entries, err := c.compute(context.Background(), ty)
		if err != nil {
			return nil, err
		}
		g.mu.Lock()
		g.entries = entries
		g.expires = time.Now().Add(ttl)
		g.mu.Unlock()
		return nil, nil
	})
}

// Top returns entries[offset:offset+count] and whether more remain.
func (c *Cache) Top(ty persistence.LeaderboardType, offset, count int) ([]Entry, bool) {
	c.ensureFresh(ty)
	entries, _ := c.groupFor(ty).snapshot()
	return page(entries, offset, count)
}

func page(entries []Entry, offset, count int) ([]Entry, bool) {
	if offset >= len(entries) {
		return nil, false
	}
	end := offset + count
	hasMore := end < len(entries)
	if end > len(entries) {
		end = len(entries)
	}
	return entries[offset:end], hasMore
}

// Centered returns a slice whose middle-ish index contains playerID, with
// (count+1)/2 entries before when count is even, count/2 otherwise, and
// count/2 after (spec.md §4.H).
func (c *Cache) Centered(ty persistence.LeaderboardType, playerID int64, count int) ([]Entry, error) {
	c.ensureFresh(ty)
	entries, _ := c.groupFor(ty).snapshot()

	idx := -1
	for i, e := range entries {
		if e.PlayerID == playerID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrPlayerNotFound
	}

	var before int
	if count%2 == 0 {
		before = (count + 1) / 2
	} else {
		before = count / 2
	}
	after := count / 2

	start := idx - before
	if start < 0 {
		start = 0
	}
	end := idx + after + 1
	if end > len(entries) {
		end = len(entries)
	}
	return entries[start:end], nil
}

// Filtered returns only the matching entries, in rank order.
func (c *Cache) Filtered(ty persistence.LeaderboardType, ids []int64) []Entry {
	if len(ids) == 0 {
		return nil
	}
	c.ensureFresh(ty)
	entries, _ := c.groupFor(ty).snapshot()

	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	out := make([]Entry, 0, len(ids))
	for _, e := range entries {
		if want[e.PlayerID] {
			out = append(out, e)
		}
	}
	return out
}

// compute pages the player table in batches of pageSize, derives each
// player's score, sorts descending, and assigns ranks starting at 1.
func (c *Cache) compute(ctx context.Context, ty persistence.LeaderboardType) ([]Entry, error) {
	var scored []Entry

	for offset := 0; ; offset += pageSize {
		ids, err := c.leaderboardData.AllPlayerIDs(ctx, offset, pageSize)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			break
		}
		for _, id := range ids {
			value, displayName, err := c.scoreFor(ctx, ty, id)
			if err != nil {
				continue
			}
			scored = append(scored, Entry{PlayerID: id, DisplayName: displayName, Value: value})
		}
		if len(ids) < pageSize {
			break
		}
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Value > scored[j].Value })
	for i := range scored {
		scored[i].Rank = i + 1
	}

	if c.leaderboardData != nil {
		persisted := make([]persistence.LeaderboardEntry, len(scored))
		for i, e := range scored {
			persisted[i] = persistence.LeaderboardEntry{PlayerID: e.PlayerID, Value: e.Value}
		}
		_ = c.leaderboardData.SetTypeBulk(ctx, ty, persisted)
	}

	return scored, nil
}

func (c *Cache) scoreFor(ctx context.Context, ty persistence.LeaderboardType, playerID int64) (uint32, string, error) {
	player, err := c.players.ByID(ctx, playerID)
	if err != nil {
		return 0, "", err
	}

	switch ty {
	case persistence.LeaderboardChallengePoints:
		v, err := c.playerData.GetChallengePoints(ctx, playerID)
		return v, player.DisplayName, err
	default:
		classes, err := c.playerData.GetClasses(ctx, playerID)
		if err != nil {
			return 0, "", err
		}
		return n7Rating(classes), player.DisplayName, nil
	}
}

// n7Rating = 30*sum(promotions) + sum(level where class is active); a
// class is active iff at least one deployed character's kit name contains
// the class name (spec.md §4.H).
func n7Rating(classes []persistence.ClassProgress) uint32 {
	var total uint32
	for _, c := range classes {
		total += 30 * c.Promotions
		if c.Deployed {
			total += c.Level
		}
	}
	return total
}
