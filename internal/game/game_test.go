package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blazerelay/server/internal/blaze/packet"
)

type recordingSink struct {
	received []*packet.Packet
}

func (s *recordingSink) Notify(pkt *packet.Packet) {
	s.received = append(s.received, pkt)
}

func newMember(id int64, name string) (*Member, *recordingSink) {
	sink := &recordingSink{}
	return &Member{PlayerID: id, DisplayName: name, Sink: sink}, sink
}

func TestAddPlayerRespectsCapacity(t *testing.T) {
	g := New(1, map[string]string{"ME3privacy": "PUBLIC"}, 0)

	for i := int64(1); i <= MaxPlayers; i++ {
		m, _ := newMember(i, "p")
		_, err := g.AddPlayer(m, JoinDirect)
		require.NoError(t, err)
	}
	assert.Equal(t, MaxPlayers, g.PlayerCount())

	overflow, _ := newMember(99, "overflow")
	_, err := g.AddPlayer(overflow, JoinDirect)
	assert.ErrorIs(t, err, ErrGameFull)
	assert.Equal(t, MaxPlayers, g.PlayerCount())
}

func TestFirstMemberIsHostAndAdmin(t *testing.T) {
	g := New(1, nil, 0)
	m, _ := newMember(7, "host")
	_, err := g.AddPlayer(m, JoinDirect)
	require.NoError(t, err)

	host := g.Host()
	require.NotNil(t, host)
	assert.Equal(t, int64(7), host.PlayerID)
	assert.Contains(t, g.Snapshot().AdminList, int64(7))
}

func TestRemovePlayerMigratesHostInOrder(t *testing.T) {
	g := New(1, nil, 0)
	a, sinkA := newMember(1, "A")
	b, sinkB := newMember(2, "B")
	c, sinkC := newMember(3, "C")
	for _, m := range []*Member{a, b, c} {
		_, err := g.AddPlayer(m, JoinDirect)
		require.NoError(t, err)
	}
	for _, s := range []*recordingSink{sinkA, sinkB, sinkC} {
		s.received = nil
	}

	out, empty, err := g.RemovePlayer(1, RemoveGeneric)
	require.NoError(t, err)
	assert.False(t, empty)

	require.NotEmpty(t, out)
	Deliver(out)

	// scenario 4: HostMigrationStart, PlayerRemoved, AdminListChange, HostMigrationFinished
	require.Len(t, sinkB.received, 4)
	assert.Equal(t, "HostMigrationStart", commandName(sinkB.received[0]))
	assert.Equal(t, "PlayerRemoved", commandName(sinkB.received[1]))
	assert.Equal(t, "AdminListChange", commandName(sinkB.received[2]))
	assert.Equal(t, "HostMigrationFinished", commandName(sinkB.received[3]))

	newHost := g.Host()
	require.NotNil(t, newHost)
	assert.Equal(t, int64(2), newHost.PlayerID)
}

func TestRemovePlayerEmptiesGame(t *testing.T) {
	g := New(1, nil, 0)
	m, _ := newMember(1, "solo")
	_, err := g.AddPlayer(m, JoinDirect)
	require.NoError(t, err)

	_, empty, err := g.RemovePlayer(1, RemoveGeneric)
	require.NoError(t, err)
	assert.True(t, empty)
	assert.Equal(t, 0, g.PlayerCount())
}

func TestRemoveUnknownPlayerIsNoOp(t *testing.T) {
	g := New(1, nil, 0)
	m, _ := newMember(1, "only")
	_, err := g.AddPlayer(m, JoinDirect)
	require.NoError(t, err)

	_, _, err = g.RemovePlayer(999, RemoveGeneric)
	assert.ErrorIs(t, err, ErrNotInRoster)
	assert.Equal(t, 1, g.PlayerCount())
}

func commandName(pkt *packet.Packet) string {
	switch pkt.Header.Command {
	case 0x13:
		return "HostMigrationStart"
	case 0x6:
		return "PlayerRemoved"
	case 0xD:
		return "AdminListChange"
	case 0x12:
		return "HostMigrationFinished"
	default:
		return "unknown"
	}
}
