package leaderboard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blazerelay/server/internal/persistence"
)

type fakePlayers struct {
	byID map[int64]*persistence.Player
}

func (f *fakePlayers) ByID(ctx context.Context, id int64) (*persistence.Player, error) {
	p, ok := f.byID[id]
	if !ok {
		return nil, persistence.ErrNotFound
	}
	return p, nil
}
func (f *fakePlayers) ByEmail(context.Context, string) (*persistence.Player, error) { return nil, persistence.ErrNotFound }
func (f *fakePlayers) Create(context.Context, string, string, string, persistence.Role) (*persistence.Player, error) {
	return nil, nil
}
func (f *fakePlayers) SetPassword(context.Context, int64, string) error { return nil }
func (f *fakePlayers) SetRole(context.Context, int64, persistence.Role) error { return nil }
func (f *fakePlayers) SetDetails(context.Context, int64, string) error { return nil }

type fakePlayerData struct {
	classes map[int64][]persistence.ClassProgress
	points  map[int64]uint32
}

func (f *fakePlayerData) All(context.Context, int64) (map[string]string, error) { return nil, nil }
func (f *fakePlayerData) Get(context.Context, int64, string) (string, error)    { return "", nil }
func (f *fakePlayerData) Set(context.Context, int64, string, string) error      { return nil }
func (f *fakePlayerData) SetBulk(context.Context, int64, map[string]string) error { return nil }
func (f *fakePlayerData) Delete(context.Context, int64, string) error           { return nil }
func (f *fakePlayerData) GetClasses(ctx context.Context, id int64) ([]persistence.ClassProgress, error) {
	return f.classes[id], nil
}
func (f *fakePlayerData) GetChallengePoints(ctx context.Context, id int64) (uint32, error) {
	return f.points[id], nil
}

type fakeLeaderboardData struct {
	ids []int64
}

func (f *fakeLeaderboardData) SetTypeBulk(context.Context, persistence.LeaderboardType, []persistence.LeaderboardEntry) error {
	return nil
}
func (f *fakeLeaderboardData) AllPlayerIDs(ctx context.Context, offset, limit int) ([]int64, error) {
	if offset >= len(f.ids) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.ids) {
		end = len(f.ids)
	}
	return f.ids[offset:end], nil
}

func newTestCache(n int) *Cache {
	players := &fakePlayers{byID: map[int64]*persistence.Player{}}
	points := map[int64]uint32{}
	var ids []int64
	for i := int64(1); i <= int64(n); i++ {
		players.byID[i] = &persistence.Player{ID: i, DisplayName: "p"}
		points[i] = uint32(n) - uint32(i) // player 1 has the highest score
		ids = append(ids, i)
	}
	pd := &fakePlayerData{points: points}
	ld := &fakeLeaderboardData{ids: ids}
	return New(players, pd, ld)
}

func waitForCompute(c *Cache, ty persistence.LeaderboardType) {
	for i := 0; i < 100; i++ {
		if entries, stale := c.groupFor(ty).snapshot(); !stale && len(entries) > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestTopStability(t *testing.T) {
	c := newTestCache(25)
	c.Top(persistence.LeaderboardChallengePoints, 0, 5)
	waitForCompute(c, persistence.LeaderboardChallengePoints)

	top10, _ := c.Top(persistence.LeaderboardChallengePoints, 0, 10)
	top5, _ := c.Top(persistence.LeaderboardChallengePoints, 0, 5)
	require.Len(t, top10, 10)
	require.Len(t, top5, 5)
	assert.Equal(t, top10[:5], top5)
}

func TestCenteredReturnsExactEntryForCountOne(t *testing.T) {
	c := newTestCache(10)
	c.Top(persistence.LeaderboardChallengePoints, 0, 1)
	waitForCompute(c, persistence.LeaderboardChallengePoints)

	entries, _ := c.Top(persistence.LeaderboardChallengePoints, 0, 10)
	require.Len(t, entries, 10)
	target := entries[3].PlayerID

	centered, err := c.Centered(persistence.LeaderboardChallengePoints, target, 1)
	require.NoError(t, err)
	require.Len(t, centered, 1)
	assert.Equal(t, target, centered[0].PlayerID)
}

func TestFilteredEmptyIsEmpty(t *testing.T) {
	c := newTestCache(5)
	assert.Empty(t, c.Filtered(persistence.LeaderboardChallengePoints, nil))
}

func TestFilteredReturnsRankOrder(t *testing.T) {
	c := newTestCache(10)
	c.Top(persistence.LeaderboardChallengePoints, 0, 1)
	waitForCompute(c, persistence.LeaderboardChallengePoints)

	filtered := c.Filtered(persistence.LeaderboardChallengePoints, []int64{5, 1, 9})
	require.Len(t, filtered, 3)
	for i := 1; i < len(filtered); i++ {
		assert.Less(t, filtered[i-1].Rank, filtered[i].Rank)
	}
}

func TestN7RatingOnlyCountsActiveClasses(t *testing.T) {
	classes := []persistence.ClassProgress{
		{Name: "Soldier", Level: 20, Promotions: 2, Deployed: true},
		{Name: "Engineer", Level: 15, Promotions: 1, Deployed: false},
	}
	assert.Equal(t, uint32(30*3+20), n7Rating(classes))
}
