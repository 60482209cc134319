// Package persistence defines the storage port the core consumes: players,
// freeform player data, galaxy-at-war ratings, and leaderboard snapshots.
// Concrete implementations (internal/db) are swapped in by cmd/server; the
// core only ever depends on these interfaces.
package persistence

import (
	"context"
	"errors"
)

// ErrUnavailable wraps every storage failure a persistence operation can
// return; the core does not inspect sub-kinds. Lookups that find no row
// return ErrNotFound instead.
var ErrUnavailable = errors.New("persistence: store unavailable")

// ErrNotFound indicates a lookup found no matching row. Distinguished from
// ErrUnavailable because callers (auth, GaW token verification) branch on
// "doesn't exist" vs. "couldn't tell".
var ErrNotFound = errors.New("persistence: not found")

// Role gates account privilege; carried from the persisted model per
// SPEC_FULL.md §9.
type Role int16

const (
	RoleUser Role = iota
	RoleAdmin
)

// Player is an account: exactly one persona per account, persona id equals
// player id (GLOSSARY).
type Player struct {
	ID          int64
	Email       string
	DisplayName string
	// PasswordHash is empty for origin-linked accounts, which have no local
	// password and must fail with AUTH_ORIGIN_ACCESS on password auth.
	PasswordHash string
	Role         Role
	Origin       bool
}

// PlayerRepository is the account aggregate.
type PlayerRepository interface {
	ByID(ctx context.Context, id int64) (*Player, error)
	ByEmail(ctx context.Context, email string) (*Player, error)
	Create(ctx context.Context, email, displayName, passwordHash string, role Role) (*Player, error)
	SetPassword(ctx context.Context, playerID int64, passwordHash string) error
	SetRole(ctx context.Context, playerID int64, role Role) error
	SetDetails(ctx context.Context, playerID int64, displayName string) error
}

// PlayerDataRepository is the freeform per-player KV store backing class
// levels, deployed characters, and challenge completion.
type PlayerDataRepository interface {
	All(ctx context.Context, playerID int64) (map[string]string, error)
	Get(ctx context.Context, playerID int64, key string) (string, error)
	Set(ctx context.Context, playerID int64, key, value string) error
	SetBulk(ctx context.Context, playerID int64, kv map[string]string) error
	Delete(ctx context.Context, playerID int64, key string) error

	// GetClasses returns the player's class progress, derived from class*/char*
	// prefixed keys, for leaderboard N7Rating computation (spec.md §4.H).
	GetClasses(ctx context.Context, playerID int64) ([]ClassProgress, error)
	// GetChallengePoints returns the second comma-separated field of the
	// player's Completion key, or 0 if absent/unparsable.
	GetChallengePoints(ctx context.Context, playerID int64) (uint32, error)
}

// ClassProgress is one class's progression data for a single player, used to
// derive N7Rating.
type ClassProgress struct {
	Name        string
	Level       uint32
	Promotions  uint32
	Deployed    bool
}

// GalaxyAtWar is the five-region rating bucket for one player.
type GalaxyAtWar struct {
	PlayerID  int64
	GroupA    uint16
	GroupB    uint16
	GroupC    uint16
	GroupD    uint16
	GroupE    uint16
}

// GalaxyAtWarRepository backs the HTTP galaxy-at-war companion surface.
type GalaxyAtWarRepository interface {
	GetOrCreate(ctx context.Context, playerID int64, decay float32) (*GalaxyAtWar, error)
	ApplyDecay(ctx context.Context, playerID int64, decay float32) (*GalaxyAtWar, error)
	Add(ctx context.Context, playerID int64, delta [5]uint16) (*GalaxyAtWar, error)
}

// LeaderboardType distinguishes the two ranked value kinds (spec.md §3).
type LeaderboardType int16

const (
	LeaderboardN7Rating LeaderboardType = iota
	LeaderboardChallengePoints
)

// LeaderboardEntry is one (player, value) pair persisted after a recompute.
type LeaderboardEntry struct {
	PlayerID int64
	Value    uint32
}

// LeaderboardDataRepository persists the ranked snapshot bulk-replaced after
// each leaderboard recompute; the in-memory cache (internal/leaderboard) is
// the authority served to clients, this is the durable mirror.
type LeaderboardDataRepository interface {
	SetTypeBulk(ctx context.Context, ty LeaderboardType, entries []LeaderboardEntry) error
	AllPlayerIDs(ctx context.Context, offset, limit int) ([]int64, error)
}
