package gamemanager

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blazerelay/server/internal/blaze/packet"
	"github.com/blazerelay/server/internal/game"
	"github.com/blazerelay/server/internal/matchmaking"
)

type nopSink struct{}

func (nopSink) Notify(*packet.Packet) {}

func member(session uint32, playerID int64) *game.Member {
	return &game.Member{SessionID: session, PlayerID: playerID, Sink: nopSink{}}
}

func TestCreateGameAllocatesMonotonicIDs(t *testing.T) {
	m := New()
	g1, err := m.CreateGame(nil, 0)
	require.NoError(t, err)
	g2, err := m.CreateGame(nil, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), g1.ID)
	assert.Equal(t, uint32(2), g2.ID)
}

func TestTryMatchJoinsJoinableGame(t *testing.T) {
	m := New()
	g, err := m.CreateGame(map[string]string{"ME3privacy": "PUBLIC"}, 0)
	require.NoError(t, err)
	_, err = g.AddPlayer(member(1, 1), game.JoinDirect)
	require.NoError(t, err)

	result, _, matchedGame, err := m.TryMatch(member(2, 2), matchmaking.RuleSet{})
	require.NoError(t, err)
	assert.Equal(t, Joined, result)
	assert.Equal(t, g.ID, matchedGame.ID)
}

func TestTryMatchQueuesWhenNoGameJoinable(t *testing.T) {
	m := New()
	result, out, g, err := m.TryMatch(member(1, 1), matchmaking.RuleSet{})
	require.NoError(t, err)
	assert.Equal(t, Queued, result)
	assert.Nil(t, out)
	assert.Nil(t, g)
}

func TestProcessQueueIsFIFO(t *testing.T) {
	m := New()

	// queue three players while no game exists, so none can join directly
	var joinOrder []int64
	for i := int64(1); i <= 3; i++ {
		result, _, _, err := m.TryMatch(member(uint32(i), i), matchmaking.RuleSet{})
		require.NoError(t, err)
		assert.Equal(t, Queued, result)
	}

	g, err := m.CreateGame(map[string]string{"ME3privacy": "PUBLIC"}, 0)
	require.NoError(t, err)
	// host fills slot 0, leaving 3 free slots
	_, err = g.AddPlayer(member(0, 0), game.JoinDirect)
	require.NoError(t, err)

	out := m.ProcessQueue(g)
	for _, o := range out {
		_ = o
	}
	for _, mem := range g.Snapshot().Roster {
		if mem.PlayerID != 0 {
			joinOrder = append(joinOrder, mem.PlayerID)
		}
	}
	assert.Equal(t, []int64{1, 2, 3}, joinOrder)
}

func TestRemoveFromQueue(t *testing.T) {
	m := New()
	_, _, _, err := m.TryMatch(member(5, 5), matchmaking.RuleSet{})
	require.NoError(t, err)

	m.RemoveFromQueue(5)

	g, err := m.CreateGame(map[string]string{"ME3privacy": "PUBLIC"}, 0)
	require.NoError(t, err)
	m.ProcessQueue(g)
	assert.Equal(t, 0, g.PlayerCount())
}
