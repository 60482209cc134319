package handlers

import (
	"context"
	"errors"

	"github.com/blazerelay/server/internal/blaze/tdf"
	"github.com/blazerelay/server/internal/game"
	"github.com/blazerelay/server/internal/gamemanager"
	"github.com/blazerelay/server/internal/matchmaking"
	"github.com/blazerelay/server/internal/router"
)

func requirePlayer(st *State) (int64, string, error) {
	player, ok := st.currentPlayer()
	if !ok {
		return 0, "", router.Fail(router.AuthInvalidUser, errors.New("handlers: session is not authenticated"))
	}
	return player.ID, player.DisplayName, nil
}

// deliverExceptSelf routes each outbound notification to its sink, except
// those addressed to the requesting session itself (self == o.Sink), which
// are appended to the request's outbox instead of delivered inline. That
// keeps a handler's own Response ahead of any Notify it produced on the
// wire (spec.md §4.D, §8 ordering property): self.Notify would otherwise
// land on sendCh before Dispatch even returns the Response.
func deliverExceptSelf(ctx context.Context, out []game.Outbound, self game.Sink) {
	for _, o := range out {
		if o.Sink == self {
			router.AppendNotify(ctx, o.Pkt)
			continue
		}
		o.Sink.Notify(o.Pkt)
	}
}

// createGame decodes ATTR/GSET, registers the game, and joins the caller as
// host (spec.md §4.F "create_game", §8 scenario 3).
func (h *Handler) createGame(st *State, sink game.Sink) router.Handler {
	return func(ctx context.Context, req router.Request) (*router.Response, error) {
		playerID, displayName, err := requirePlayer(st)
		if err != nil {
			return nil, err
		}

		attrs, err := req.Body.ExpectStringMap("ATTR")
		if err != nil {
			return nil, router.DecodeError(err)
		}
		settings, err := req.Body.ExpectVarInt("GSET")
		if err != nil {
			return nil, router.DecodeError(err)
		}

		g, err := h.deps.Manager.CreateGame(attrs, uint16(settings))
		if err != nil {
			return nil, router.Fail(router.ServerUnavailable, err)
		}

		member := &game.Member{SessionID: st.sessionID, PlayerID: playerID, DisplayName: displayName, Sink: sink}
		out, err := g.AddPlayer(member, game.JoinDirect)
		if err != nil {
			return nil, router.Fail(router.ServerUnavailable, err)
		}
		deliverExceptSelf(ctx, out, sink)
		st.setGame(g.ID)

		w := tdf.NewWriter()
		w.VarInt("GID", uint64(g.ID))
		return &router.Response{Body: w}, nil
	}
}

// startMatchmaking decodes the CRIT rule set and either joins an existing
// joinable game immediately or enqueues the session (spec.md §4.F
// "try_match", §8 scenario 3).
func (h *Handler) startMatchmaking(st *State, sink game.Sink) router.Handler {
	return func(ctx context.Context, req router.Request) (*router.Response, error) {
		playerID, displayName, err := requirePlayer(st)
		if err != nil {
			return nil, err
		}

		rules, err := matchmaking.ParseRuleSet(req.Body)
		if err != nil {
			return nil, router.DecodeError(err)
		}

		member := &game.Member{SessionID: st.sessionID, PlayerID: playerID, DisplayName: displayName, Sink: sink}
		result, out, g, err := h.deps.Manager.TryMatch(member, rules)
		if err != nil {
			return nil, router.Fail(router.ServerUnavailable, err)
		}

		w := tdf.NewWriter()
		w.VarInt("MSID", uint64(st.sessionID))
		if result == gamemanager.Joined {
			deliverExceptSelf(ctx, out, sink)
			st.setGame(g.ID)
			w.VarInt("GID", uint64(g.ID))
		}
		return &router.Response{Body: w}, nil
	}
}

func (h *Handler) cancelMatchmaking(st *State) router.Handler {
	return func(_ context.Context, _ router.Request) (*router.Response, error) {
		h.deps.Manager.RemoveFromQueue(st.sessionID)
		return &router.Response{Body: tdf.NewWriter()}, nil
	}
}

// updateMeshConnection marks the caller's own mesh state Connected once its
// peer connections are established, per the client's single-report pattern
// (original_source's UpdateMeshRequest carries only the game id and a
// target list the client always reports as itself).
func (h *Handler) updateMeshConnection(st *State, sink game.Sink) router.Handler {
	return func(ctx context.Context, req router.Request) (*router.Response, error) {
		playerID, _, err := requirePlayer(st)
		if err != nil {
			return nil, err
		}
		gid, err := req.Body.ExpectVarInt("GID")
		if err != nil {
			return nil, router.DecodeError(err)
		}

		g, ok := h.deps.Manager.Get(uint32(gid))
		if !ok {
			return nil, router.Fail(router.GameNotFound, nil)
		}
		out := g.UpdateMeshConnection(playerID, game.PlayerConnected, inProgressState)
		deliverExceptSelf(ctx, out, sink)
		return &router.Response{Body: tdf.NewWriter()}, nil
	}
}

// inProgressState is the game state value this port assigns once every
// non-host player reports mesh-connected (spec.md §9 open question: the
// setting bitfield is opaque, but the transition itself is an internal
// trigger the core must pick a concrete value for).
const inProgressState uint16 = 130

// removePlayer evicts a roster member, migrating host as needed, and runs
// the matchmaking queue against any capacity the removal freed (spec.md §8
// scenario 4, §4.F "process_queue").
func (h *Handler) removePlayer(st *State, sink game.Sink) router.Handler {
	return func(ctx context.Context, req router.Request) (*router.Response, error) {
		gid, err := req.Body.ExpectVarInt("GID")
		if err != nil {
			return nil, router.DecodeError(err)
		}
		pid, err := req.Body.ExpectVarInt("PID")
		if err != nil {
			return nil, router.DecodeError(err)
		}
		reason, err := req.Body.ExpectVarInt("REAS")
		if err != nil {
			reason = uint64(game.RemoveGeneric)
		}

		g, ok := h.deps.Manager.Get(uint32(gid))
		if !ok {
			return nil, router.Fail(router.GameNotFound, nil)
		}

		out, empty, err := g.RemovePlayer(int64(pid), game.RemoveReason(reason))
		if err != nil {
			if errors.Is(err, game.ErrNotInRoster) {
				return &router.Response{Body: tdf.NewWriter()}, nil
			}
			return nil, router.Fail(router.ServerUnavailable, err)
		}
		deliverExceptSelf(ctx, out, sink)

		if empty {
			h.deps.Manager.Unregister(g.ID)
		} else {
			deliverExceptSelf(ctx, h.deps.Manager.ProcessQueue(g), sink)
		}

		if int64(pid) == mustPlayerID(st) {
			st.clearGame()
		}
		return &router.Response{Body: tdf.NewWriter()}, nil
	}
}

func mustPlayerID(st *State) int64 {
	if player, ok := st.currentPlayer(); ok {
		return player.ID
	}
	return 0
}
