package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/blazerelay/server/internal/blaze/tdf"
	"github.com/blazerelay/server/internal/leaderboard"
	"github.com/blazerelay/server/internal/persistence"
	"github.com/blazerelay/server/internal/router"
)

// leaderboardTypeOf maps the request's NAME string to the cache's fixed
// leaderboard set, tolerating a locale suffix such as "N7RatingGlobal"
// (original_source/servers/main/src/routes/stats.rs).
func leaderboardTypeOf(name string) (persistence.LeaderboardType, error) {
	switch {
	case strings.HasPrefix(name, "N7Rating"):
		return persistence.LeaderboardN7Rating, nil
	case strings.HasPrefix(name, "ChallengePoints"):
		return persistence.LeaderboardChallengePoints, nil
	default:
		return 0, fmt.Errorf("handlers: unknown leaderboard name %q", name)
	}
}

func writeLeaderboardEntries(w *tdf.Writer, entries []leaderboard.Entry) {
	w.GroupList("LDLS", len(entries))
	for _, e := range entries {
		w.String("ENAM", e.DisplayName)
		w.VarInt("ENID", uint64(e.PlayerID))
		w.VarInt("RANK", uint64(e.Rank))
		w.String("RSTA", strconv.FormatUint(uint64(e.Value), 10))
		w.VarInt("RWFG", 0)
		w.Union("RWST", tdf.UnsetUnionDiscriminant, nil)
		w.StringList("STAT", []string{strconv.FormatUint(uint64(e.Value), 10)})
		w.VarInt("UATT", 0)
		w.GroupEnd()
	}
}

// getLeaderboard serves a COUN-sized page starting at STRT of the NAME
// leaderboard (spec.md §4.H, §8 scenario 5).
func (h *Handler) getLeaderboard() router.Handler {
	return func(_ context.Context, req router.Request) (*router.Response, error) {
		name, err := req.Body.ExpectString("NAME")
		if err != nil {
			return nil, router.DecodeError(err)
		}
		count, err := req.Body.ExpectVarInt("COUN")
		if err != nil {
			return nil, router.DecodeError(err)
		}
		start, err := req.Body.ExpectVarInt("STRT")
		if err != nil {
			return nil, router.DecodeError(err)
		}

		ty, err := leaderboardTypeOf(name)
		if err != nil {
			return nil, router.Fail(router.LeaderboardRangeInvalid, err)
		}

		entries, _ := h.deps.Leaderboard.Top(ty, int(start), int(count))
		w := tdf.NewWriter()
		writeLeaderboardEntries(w, entries)
		return &router.Response{Body: w}, nil
	}
}

// getCenteredLeaderboard serves a COUN-sized window centered on CENT.
func (h *Handler) getCenteredLeaderboard() router.Handler {
	return func(_ context.Context, req router.Request) (*router.Response, error) {
		name, err := req.Body.ExpectString("NAME")
		if err != nil {
			return nil, router.DecodeError(err)
		}
		center, err := req.Body.ExpectVarInt("CENT")
		if err != nil {
			return nil, router.DecodeError(err)
		}
		count, err := req.Body.ExpectVarInt("COUN")
		if err != nil {
			return nil, router.DecodeError(err)
		}

		ty, err := leaderboardTypeOf(name)
		if err != nil {
			return nil, router.Fail(router.LeaderboardRangeInvalid, err)
		}

		entries, err := h.deps.Leaderboard.Centered(ty, int64(center), int(count))
		if err != nil {
			if errors.Is(err, leaderboard.ErrPlayerNotFound) {
				return nil, router.Fail(router.LeaderboardPlayerNotFound, err)
			}
			return nil, router.Fail(router.ServerUnavailable, err)
		}

		w := tdf.NewWriter()
		writeLeaderboardEntries(w, entries)
		return &router.Response{Body: w}, nil
	}
}

// getFilteredLeaderboard serves only the rows named by IDLS, in rank order.
func (h *Handler) getFilteredLeaderboard() router.Handler {
	return func(_ context.Context, req router.Request) (*router.Response, error) {
		name, err := req.Body.ExpectString("NAME")
		if err != nil {
			return nil, router.DecodeError(err)
		}
		rawIDs, err := req.Body.ExpectVarIntList("IDLS")
		if err != nil {
			return nil, router.DecodeError(err)
		}

		ty, err := leaderboardTypeOf(name)
		if err != nil {
			return nil, router.Fail(router.LeaderboardRangeInvalid, err)
		}

		ids := make([]int64, len(rawIDs))
		for i, id := range rawIDs {
			ids[i] = int64(id)
		}

		entries := h.deps.Leaderboard.Filtered(ty, ids)
		w := tdf.NewWriter()
		writeLeaderboardEntries(w, entries)
		return &router.Response{Body: w}, nil
	}
}
