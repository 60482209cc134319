// Package game implements the per-game actor: roster, attribute/setting/
// state changes, and host migration (spec.md §4.E). The game holds the
// canonical truth; all public operations go through it.
package game

import (
	"sync"

	"github.com/blazerelay/server/internal/blaze/packet"
	"github.com/blazerelay/server/internal/matchmaking"
)

// MaxPlayers is the default roster capacity (spec.md §3).
const MaxPlayers = 4

// InitState is the default game state before the first transition
// (spec.md §3: "default 1 = Init").
const InitState uint16 = 1

// PlayerState is the per-member mesh connection state (spec.md §3).
type PlayerState uint16

const (
	PlayerConnecting PlayerState = iota
	PlayerConnected
	PlayerDisconnected
	PlayerReserved
)

// JoinContext records how a player was added, used only for the GameSetup
// notification payload.
type JoinContext uint8

const (
	JoinDirect JoinContext = iota
	JoinMatchmaking
)

// RemoveReason mirrors the client's removal reason enum; Generic (6) is the
// default for a removal request that carries no reason, and disconnects use
// Disconnected (3).
type RemoveReason uint16

const (
	RemoveGeneric       RemoveReason = 6
	RemoveHostEjected   RemoveReason = 2
	RemoveDisconnected  RemoveReason = 3
)

// Sink is the notification delivery contract a session exposes to the game
// actor (spec.md §4.D). Defined here, not imported from internal/session,
// to keep game free of a dependency on the session package.
type Sink interface {
	Notify(pkt *packet.Packet)
}

// Member is one roster entry.
type Member struct {
	SessionID   uint32
	PlayerID    int64
	DisplayName string
	Slot        int
	State       PlayerState
	Sink        Sink
}

// Outbound pairs a notification packet with the sink it must be delivered
// through, produced by mutating operations while holding the game lock and
// delivered only after the lock is released (SPEC_FULL.md §5 ordering rule).
type Outbound struct {
	Sink Sink
	Pkt  *packet.Packet
}

// Deliver sends every outbound notification through its sink. Call this
// only after releasing the game lock.
func Deliver(out []Outbound) {
	for _, o := range out {
		o.Sink.Notify(o.Pkt)
	}
}

// Game is one hosted match.
type Game struct {
	mu sync.RWMutex

	ID         uint32
	State      uint16
	Settings   uint16
	Attributes map[string]string
	AdminList  []int64
	Roster     []*Member

	stopping bool
}

// New constructs a game in Init state with an empty roster.
func New(id uint32, attrs map[string]string, settings uint16) *Game {
	if attrs == nil {
		attrs = make(map[string]string)
	}
	return &Game{
		ID:         id,
		State:      InitState,
		Settings:   settings,
		Attributes: attrs,
	}
}

// JoinableState is the sole predicate used by the manager and matchmaking
// loop (spec.md §4.E).
type JoinableState int

const (
	Joinable JoinableState = iota
	Full
	Stopping
	NotMatch
)

// JoinableStateFor inspects roster length, lifecycle flags, and the rule
// set matcher against current attributes.
func (g *Game) JoinableStateFor(rs matchmaking.RuleSet) JoinableState {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.joinableStateLocked(rs)
}

func (g *Game) joinableStateLocked(rs matchmaking.RuleSet) JoinableState {
	if g.stopping {
		return Stopping
	}
	if len(g.Roster) >= MaxPlayers {
		return Full
	}
	if !rs.Matches(g.Attributes) {
		return NotMatch
	}
	return Joinable
}

// Snapshot is an immutable copy of game state for the diagnostic API and
// GameSetup payloads.
type Snapshot struct {
	ID         uint32
	State      uint16
	Settings   uint16
	Attributes map[string]string
	AdminList  []int64
	Roster     []Member
}

// Snapshot copies the game's current state under a read lock.
func (g *Game) Snapshot() Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.snapshotLocked()
}

func (g *Game) snapshotLocked() Snapshot {
	attrs := make(map[string]string, len(g.Attributes))
	for k, v := range g.Attributes {
		attrs[k] = v
	}
	roster := make([]Member, len(g.Roster))
	for i, m := range g.Roster {
		roster[i] = *m
	}
	admin := make([]int64, len(g.AdminList))
	copy(admin, g.AdminList)
	return Snapshot{
		ID:         g.ID,
		State:      g.State,
		Settings:   g.Settings,
		Attributes: attrs,
		AdminList:  admin,
		Roster:     roster,
	}
}

// PlayerCount returns the current roster length.
func (g *Game) PlayerCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.Roster)
}

// Host returns the current host member, or nil if the roster is empty.
func (g *Game) Host() *Member {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if len(g.Roster) == 0 {
		return nil
	}
	h := *g.Roster[0]
	return &h
}

// AddPlayer appends member to the roster if capacity and admission allow,
// and builds the PlayerJoining/GameSetup/AdminListChange notification set
// (spec.md §4.E). Returns GameFull if the roster is already at MaxPlayers.
func (g *Game) AddPlayer(member *Member, ctx JoinContext) ([]Outbound, error) {
	g.mu.Lock()

	if len(g.Roster) >= MaxPlayers {
		g.mu.Unlock()
		return nil, ErrGameFull
	}

	member.Slot = len(g.Roster)
	firstPlayer := len(g.Roster) == 0
	g.Roster = append(g.Roster, member)
	if firstPlayer {
		g.AdminList = append(g.AdminList, member.PlayerID)
	}

	snapshot := g.snapshotLocked()
	var out []Outbound
	for _, m := range g.Roster[:len(g.Roster)-1] {
		out = append(out, Outbound{Sink: m.Sink, Pkt: notifyPlayerJoining(g.ID, *member)})
	}
	out = append(out, Outbound{Sink: member.Sink, Pkt: notifyGameSetup(snapshot, ctx)})
	if firstPlayer {
		out = append(out, Outbound{Sink: member.Sink, Pkt: notifyAdminListChange(g.ID, member.PlayerID, adminOpAdd)})
	}

	g.mu.Unlock()
	return out, nil
}

// RemovePlayer removes playerID from the roster, migrating the host if
// necessary, and returns the ordered notification set from the "Host
// migration" scenario in spec.md §8: HostMigrationStart, PlayerRemoved,
// AdminListChange, HostMigrationFinished.
func (g *Game) RemovePlayer(playerID int64, reason RemoveReason) ([]Outbound, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	idx := -1
	for i, m := range g.Roster {
		if m.PlayerID == playerID {
			idx = i
			break
		}
	}
	if idx < 0 {
		// Invariant violation per spec.md §7: logged and treated as a no-op
		// by the caller, not a session-fatal condition.
		return nil, false, ErrNotInRoster
	}

	wasHost := idx == 0
	g.Roster = append(g.Roster[:idx], g.Roster[idx+1:]...)
	for i, m := range g.Roster {
		m.Slot = i
	}
	removeFromAdminList(&g.AdminList, playerID)

	var out []Outbound
	var newHostID int64
	if wasHost && len(g.Roster) > 0 {
		newHostID = g.Roster[0].PlayerID
		for _, m := range g.Roster {
			out = append(out, Outbound{Sink: m.Sink, Pkt: notifyHostMigrationStart(g.ID, newHostID)})
		}
	}
	for _, m := range g.Roster {
		out = append(out, Outbound{Sink: m.Sink, Pkt: notifyPlayerRemoved(g.ID, playerID, reason)})
	}
	for _, m := range g.Roster {
		out = append(out, Outbound{Sink: m.Sink, Pkt: notifyAdminListChange(g.ID, playerID, adminOpRemove)})
	}
	if wasHost && len(g.Roster) > 0 {
		if !containsInt64(g.AdminList, newHostID) {
			g.AdminList = append(g.AdminList, newHostID)
		}
		for _, m := range g.Roster {
			out = append(out, Outbound{Sink: m.Sink, Pkt: notifyHostMigrationFinished(g.ID)})
		}
	}

	empty := len(g.Roster) == 0
	if empty {
		g.stopping = true
	}
	return out, empty, nil
}

// SetState mutates the game's state value and broadcasts GameStateChange.
func (g *Game) SetState(state uint16) []Outbound {
	g.mu.Lock()
	g.State = state
	pkt := notifyGameStateChange(g.ID, state)
	out := g.broadcastLocked(pkt)
	g.mu.Unlock()
	return out
}

// SetSettings mutates the settings bitfield and broadcasts
// GameSettingsChange. The bitfield's meaning is opaque to the server; it is
// round-tripped without interpretation.
func (g *Game) SetSettings(settings uint16) []Outbound {
	g.mu.Lock()
	g.Settings = settings
	pkt := notifyGameSettingsChange(g.ID, settings)
	out := g.broadcastLocked(pkt)
	g.mu.Unlock()
	return out
}

// SetAttributes merges attrs into the game's attribute map and broadcasts
// GameAttribChange.
func (g *Game) SetAttributes(attrs map[string]string) []Outbound {
	g.mu.Lock()
	for k, v := range attrs {
		g.Attributes[k] = v
	}
	pkt := notifyGameAttribChange(g.ID, attrs)
	out := g.broadcastLocked(pkt)
	g.mu.Unlock()
	return out
}

// UpdateMeshConnection updates one member's connection state and, once
// every non-host player has reached Connected, transitions the game to
// in-progress (spec.md §4.E).
func (g *Game) UpdateMeshConnection(playerID int64, target PlayerState, inProgressState uint16) []Outbound {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, m := range g.Roster {
		if m.PlayerID == playerID {
			m.State = target
			break
		}
	}

	allConnected := len(g.Roster) > 1
	for _, m := range g.Roster[1:] {
		if m.State != PlayerConnected {
			allConnected = false
			break
		}
	}

	if allConnected && g.State != inProgressState {
		g.State = inProgressState
		return g.broadcastLocked(notifyGameStateChange(g.ID, inProgressState))
	}
	return nil
}

func (g *Game) broadcastLocked(pkt *packet.Packet) []Outbound {
	out := make([]Outbound, 0, len(g.Roster))
	for _, m := range g.Roster {
		out = append(out, Outbound{Sink: m.Sink, Pkt: pkt})
	}
	return out
}

func removeFromAdminList(list *[]int64, playerID int64) {
	for i, id := range *list {
		if id == playerID {
			*list = append((*list)[:i], (*list)[i+1:]...)
			return
		}
	}
}

func containsInt64(list []int64, v int64) bool {
	for _, id := range list {
		if id == v {
			return true
		}
	}
	return false
}
