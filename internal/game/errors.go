package game

import "errors"

// ErrGameFull is returned by AddPlayer when the roster is already at
// MaxPlayers.
var ErrGameFull = errors.New("game: roster full")

// ErrNotInRoster is returned by RemovePlayer for a player id not present in
// the roster; spec.md §7 treats this as a logged no-op, never session-fatal.
var ErrNotInRoster = errors.New("game: player not in roster")
