package leaderboard

import "errors"

// ErrPlayerNotFound is returned by Centered when playerID has no ranked
// entry (spec.md §7 LEADERBOARD_PLAYER_NOT_FOUND).
var ErrPlayerNotFound = errors.New("leaderboard: player not ranked")
