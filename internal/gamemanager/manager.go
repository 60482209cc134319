// Package gamemanager implements the game registry, id allocation, and
// matchmaking queue (spec.md §4.F), modeled on the teacher's registry
// pattern (internal/gameserver/clients.go) generalized from connected
// clients to hosted games.
package gamemanager

import (
	"container/list"
	"errors"
	"sync"

	"github.com/blazerelay/server/internal/game"
	"github.com/blazerelay/server/internal/matchmaking"
)

// ErrExhausted is returned by create_game when id allocation wraps around
// twice without finding a free id (spec.md §4.F).
var ErrExhausted = errors.New("gamemanager: id space exhausted")

// MatchResult is the outcome of TryMatch.
type MatchResult int

const (
	Joined MatchResult = iota
	Queued
)

// queueEntry is one matchmaking.entry (spec.md §3): a session reference,
// rule set, and enqueue order (FIFO via container/list position).
type queueEntry struct {
	member  *game.Member
	rules   matchmaking.RuleSet
	session uint32
}

// Manager holds id -> game and the matchmaking queue.
type Manager struct {
	mu      sync.RWMutex
	games   map[uint32]*game.Game
	nextID  uint32
	order   []uint32 // id-ordered for snapshot/try_match iteration

	qmu   sync.Mutex
	queue *list.List // of *queueEntry
}

// New returns an empty Manager with id allocation starting at 1 (spec.md §3).
func New() *Manager {
	return &Manager{
		games:  make(map[uint32]*game.Game),
		nextID: 1,
		queue:  list.New(),
	}
}

// CreateGame allocates the next id and registers a new game in Init state.
func (m *Manager) CreateGame(attrs map[string]string, settings uint16) (*game.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, err := m.allocateIDLocked()
	if err != nil {
		return nil, err
	}
	g := game.New(id, attrs, settings)
	m.games[id] = g
	m.order = append(m.order, id)
	return g, nil
}

func (m *Manager) allocateIDLocked() (uint32, error) {
	start := m.nextID
	for scans := 0; scans < 2; scans++ {
		for {
			id := m.nextID
			m.nextID++
			if m.nextID == 0 {
				m.nextID = 1 // skip 0, wrap
			}
			if _, taken := m.games[id]; !taken {
				return id, nil
			}
			if m.nextID == start {
				break
			}
		}
	}
	return 0, ErrExhausted
}

// Get returns the game for id, if registered.
func (m *Manager) Get(id uint32) (*game.Game, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.games[id]
	return g, ok
}

// Unregister removes a game from the registry, called when its roster
// empties (spec.md §3 "destroyed when roster empties").
func (m *Manager) Unregister(id uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.games, id)
	for i, gid := range m.order {
		if gid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// TryMatch iterates registered games in id order; on the first Joinable
// one it adds the member directly and returns Joined. Otherwise the entry
// is enqueued and Queued is returned.
func (m *Manager) TryMatch(member *game.Member, rules matchmaking.RuleSet) (MatchResult, []game.Outbound, *game.Game, error) {
	m.mu.RLock()
	ids := append([]uint32(nil), m.order...)
	m.mu.RUnlock()

	for _, id := range ids {
		g, ok := m.Get(id)
		if !ok {
			continue
		}
		if g.JoinableStateFor(rules) != game.Joinable {
			continue
		}
		out, err := g.AddPlayer(member, game.JoinMatchmaking)
		if errors.Is(err, game.ErrGameFull) {
			continue
		}
		if err != nil {
			return Queued, nil, nil, err
		}
		return Joined, out, g, nil
	}

	m.qmu.Lock()
	m.queue.PushBack(&queueEntry{member: member, rules: rules, session: member.SessionID})
	m.qmu.Unlock()
	return Queued, nil, nil, nil
}

// ProcessQueue walks the queue head-first against g: while the head matches
// and g is Joinable, pop and add it; stop on Full/Stopping; on NotMatch,
// leave the entry and try the next (spec.md §4.F). Entries remain FIFO
// relative to each other.
func (m *Manager) ProcessQueue(g *game.Game) []game.Outbound {
	var allOut []game.Outbound

	m.qmu.Lock()
	defer m.qmu.Unlock()

	var next *list.Element
	for e := m.queue.Front(); e != nil; e = next {
		next = e.Next()
		entry := e.Value.(*queueEntry)

		state := g.JoinableStateFor(entry.rules)
		if state == game.Full || state == game.Stopping {
			break
		}
		if state != game.Joinable {
			continue
		}

		out, err := g.AddPlayer(entry.member, game.JoinMatchmaking)
		if err != nil {
			continue
		}
		allOut = append(allOut, out...)
		m.queue.Remove(e)
	}

	return allOut
}

// RemoveFromQueue removes every queue entry for sessionID, used on
// session disconnect and explicit cancel (spec.md §3).
func (m *Manager) RemoveFromQueue(sessionID uint32) {
	m.qmu.Lock()
	defer m.qmu.Unlock()
	var next *list.Element
	for e := m.queue.Front(); e != nil; e = next {
		next = e.Next()
		if e.Value.(*queueEntry).session == sessionID {
			m.queue.Remove(e)
		}
	}
}

// Snapshot returns a stable, id-ordered slice of game snapshots for the
// diagnostic API.
func (m *Manager) Snapshot(offset, count int) ([]game.Snapshot, bool) {
	m.mu.RLock()
	ids := append([]uint32(nil), m.order...)
	m.mu.RUnlock()

	if offset >= len(ids) {
		return nil, false
	}
	end := offset + count
	hasMore := end < len(ids)
	if end > len(ids) {
		end = len(ids)
	}

	out := make([]game.Snapshot, 0, end-offset)
	for _, id := range ids[offset:end] {
		if g, ok := m.Get(id); ok {
			out = append(out, g.Snapshot())
		}
	}
	return out, hasMore
}
