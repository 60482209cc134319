// Package handlers wires every (component, command) route the game client
// exercises onto a router.Router, closing over the shared service deps and
// one connection's mutable session state, modeled on the teacher's
// per-connection Handler struct in internal/gameserver/handler.go
// (spec.md §6, Appendix A).
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/blazerelay/server/internal/blaze/components"
	"github.com/blazerelay/server/internal/blaze/packet"
	"github.com/blazerelay/server/internal/blaze/tdf"
	"github.com/blazerelay/server/internal/config"
	"github.com/blazerelay/server/internal/game"
	"github.com/blazerelay/server/internal/gamemanager"
	"github.com/blazerelay/server/internal/leaderboard"
	"github.com/blazerelay/server/internal/matchmaking"
	"github.com/blazerelay/server/internal/persistence"
	"github.com/blazerelay/server/internal/retriever"
	"github.com/blazerelay/server/internal/router"
)

// Deps are the shared services every connection's router closes over.
// Retriever is nil when the upstream proxy is disabled (spec.md §9
// "retriever optionality").
type Deps struct {
	Players     persistence.PlayerRepository
	PlayerData  persistence.PlayerDataRepository
	GaW         persistence.GalaxyAtWarRepository
	Manager     *gamemanager.Manager
	Leaderboard *leaderboard.Cache
	Retriever   *retriever.Client
	Config      config.RuntimeConfig
	Presence    *Registry
}

// Registry tracks every authenticated session's sink so NotifyUserRemoved
// (spec.md §4.D shutdown step 3) can reach subscribed peers. Grounded on
// the teacher's ClientManager registry (internal/gameserver/clients.go),
// generalized from game clients to Blaze sessions.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uint32]game.Sink
}

// NewRegistry returns an empty session registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[uint32]game.Sink)}
}

// Add registers sessionID's sink.
func (r *Registry) Add(sessionID uint32, sink game.Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sessionID] = sink
}

// Remove drops sessionID from the registry.
func (r *Registry) Remove(sessionID uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
}

// Broadcast delivers pkt to every registered session except exceptID.
func (r *Registry) Broadcast(exceptID uint32, pkt *packet.Packet) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, sink := range r.sessions {
		if id == exceptID {
			continue
		}
		sink.Notify(pkt)
	}
}

// State is one connection's mutable, authenticated-session data (spec.md
// §3 "Session" data model: optional player reference, game membership).
type State struct {
	mu         sync.Mutex
	sessionID  uint32
	player     *persistence.Player
	inGame     bool
	gameID     uint32
	matchRules matchmaking.RuleSet
}

// NewState returns an unauthenticated State for a freshly accepted
// connection.
func NewState(sessionID uint32) *State {
	return &State{sessionID: sessionID}
}

func (st *State) setPlayer(p *persistence.Player) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.player = p
}

func (st *State) currentPlayer() (*persistence.Player, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.player, st.player != nil
}

func (st *State) setGame(id uint32) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.inGame = true
	st.gameID = id
}

func (st *State) clearGame() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.inGame = false
	st.gameID = 0
}

func (st *State) currentGame() (uint32, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.gameID, st.inGame
}

// Handler builds per-connection routers bound to Deps.
type Handler struct {
	deps *Deps
}

// New returns a Handler backed by deps.
func New(deps *Deps) *Handler {
	return &Handler{deps: deps}
}

// NewSessionRouter returns a router.Router wired with every route this
// connection can dispatch, closing over st (this connection's state) and
// sink (this connection's notification delivery contract, spec.md §4.D).
func (h *Handler) NewSessionRouter(st *State, sink game.Sink) *router.Router {
	rt := router.New()

	rt.Handle(uint16(components.Authentication), components.AuthSilentLogin, h.silentLogin(st, sink))
	rt.Handle(uint16(components.Authentication), components.AuthOriginLogin, h.originLogin(st, sink))
	rt.Handle(uint16(components.Authentication), components.AuthLogout, h.logout(st))

	rt.Handle(uint16(components.GameManager), components.GameManagerCreateGame, h.createGame(st, sink))
	rt.Handle(uint16(components.GameManager), components.GameManagerStartMatchmaking, h.startMatchmaking(st, sink))
	rt.Handle(uint16(components.GameManager), components.GameManagerCancelMatchmaking, h.cancelMatchmaking(st))
	rt.Handle(uint16(components.GameManager), components.GameManagerUpdateMeshConnection, h.updateMeshConnection(st, sink))
	rt.Handle(uint16(components.GameManager), components.GameManagerRemovePlayer, h.removePlayer(st, sink))

	rt.Handle(uint16(components.Util), components.UtilPreAuth, h.preAuth())
	rt.Handle(uint16(components.Util), components.UtilPostAuth, h.postAuth(st))
	rt.Handle(uint16(components.Util), components.UtilFetchClientConfig, h.fetchClientConfig())
	rt.Handle(uint16(components.Util), components.UtilGetTelemetryServer, h.getTelemetryServer())
	rt.Handle(uint16(components.Util), components.UtilGetPingSiteInfo, h.getPingSiteInfo())
	rt.Handle(uint16(components.Util), components.UtilSuspendUserPing, noopHandler)
	rt.Handle(uint16(components.Util), components.UtilSetClientMetrics, noopHandler)
	rt.Handle(uint16(components.Util), components.UtilSetClientState, noopHandler)

	rt.Handle(uint16(components.Stats), components.StatsGetLeaderboard, h.getLeaderboard())
	rt.Handle(uint16(components.Stats), components.StatsGetCenteredLeaderboard, h.getCenteredLeaderboard())
	rt.Handle(uint16(components.Stats), components.StatsGetFilteredLeaderboard, h.getFilteredLeaderboard())

	return rt
}

// Disconnect runs the shutdown sequence spec.md §4.D prescribes: evict from
// any game (possibly destroying it and running the matchmaking queue
// against whichever game freed capacity), evict from the matchmaking queue,
// and announce departure to the rest of the registry.
func (h *Handler) Disconnect(st *State, sink game.Sink) {
	h.deps.Manager.RemoveFromQueue(st.sessionID)

	if gid, inGame := st.currentGame(); inGame {
		if g, ok := h.deps.Manager.Get(gid); ok {
			if player, ok := st.currentPlayer(); ok {
				out, empty, err := g.RemovePlayer(player.ID, game.RemoveDisconnected)
				if err != nil && !errors.Is(err, game.ErrNotInRoster) {
					slog.Error("disconnect: removing player from game failed", "game", gid, "error", err)
				}
				game.Deliver(out)
				if empty {
					h.deps.Manager.Unregister(gid)
				} else {
					game.Deliver(h.deps.Manager.ProcessQueue(g))
				}
			}
		}
	}

	if h.deps.Presence != nil {
		if player, ok := st.currentPlayer(); ok {
			h.deps.Presence.Remove(st.sessionID)
			h.deps.Presence.Broadcast(st.sessionID, notifyUserRemoved(player.ID))
		}
	}
}

func noopHandler(_ context.Context, _ router.Request) (*router.Response, error) {
	return &router.Response{Body: tdf.NewWriter()}, nil
}

// --- Authentication ---------------------------------------------------

// silentLogin resolves the AUTH token (the lowercase hex player id handed
// out by a previous login, per original_source's "KEY"/"PCTK" session
// token scheme) back to a player and replies with the silent-login shape
// from spec.md §8 scenario 2.
func (h *Handler) silentLogin(st *State, sink game.Sink) router.Handler {
	return func(ctx context.Context, req router.Request) (*router.Response, error) {
		token, err := req.Body.ExpectString("AUTH")
		if err != nil {
			return nil, router.DecodeError(err)
		}

		player, err := resolvePlayerToken(ctx, h.deps.Players, token)
		if err != nil {
			return nil, err
		}
		st.setPlayer(player)
		if h.deps.Presence != nil {
			h.deps.Presence.Add(st.sessionID, sink)
		}

		return &router.Response{Body: authResponse(player, true)}, nil
	}
}

// originLogin authenticates through the optional retriever, falling back
// to AUTH_ORIGIN_ACCESS when it is not configured (spec.md §9 "retriever
// optionality": "handlers that would call it must tolerate its absence").
func (h *Handler) originLogin(st *State, sink game.Sink) router.Handler {
	return func(ctx context.Context, req router.Request) (*router.Response, error) {
		token, err := req.Body.ExpectString("AUTH")
		if err != nil {
			return nil, router.DecodeError(err)
		}
		if h.deps.Retriever == nil {
			return nil, router.Fail(router.AuthOriginAccess, errors.New("handlers: retriever not configured"))
		}

		email, displayName, err := h.deps.Retriever.OriginLogin(ctx, token)
		if err != nil {
			return nil, router.Fail(router.AuthInvalidToken, err)
		}

		player, err := h.deps.Players.ByEmail(ctx, email)
		if errors.Is(err, persistence.ErrNotFound) {
			player, err = h.deps.Players.Create(ctx, email, displayName, "", persistence.RoleUser)
		}
		if err != nil {
			return nil, router.Fail(router.ServerUnavailable, err)
		}

		st.setPlayer(player)
		if h.deps.Presence != nil {
			h.deps.Presence.Add(st.sessionID, sink)
		}
		return &router.Response{Body: authResponse(player, true)}, nil
	}
}

func (h *Handler) logout(st *State) router.Handler {
	return func(_ context.Context, _ router.Request) (*router.Response, error) {
		if player, ok := st.currentPlayer(); ok && h.deps.Presence != nil {
			h.deps.Presence.Remove(st.sessionID)
			h.deps.Presence.Broadcast(st.sessionID, notifyUserRemoved(player.ID))
		}
		st.setPlayer(nil)
		return &router.Response{Body: tdf.NewWriter()}, nil
	}
}

// resolvePlayerToken decodes token as a hex player id (the scheme shared
// with the GaW HTTP surface's shared-token login) and looks the player up.
func resolvePlayerToken(ctx context.Context, players persistence.PlayerRepository, token string) (*persistence.Player, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(token), 16, 64)
	if err != nil {
		return nil, router.Fail(router.AuthInvalidToken, err)
	}
	player, err := players.ByID(ctx, id)
	if errors.Is(err, persistence.ErrNotFound) {
		return nil, router.Fail(router.AuthInvalidToken, err)
	}
	if err != nil {
		return nil, router.Fail(router.ServerUnavailable, err)
	}
	return player, nil
}

// authResponse encodes the AuthResponse{silent: true} shape from
// original_source/src/session/models/auth.rs: PCTK, SESS{BUID, MAIL, PDTL}.
func authResponse(player *persistence.Player, silent bool) *tdf.Writer {
	w := tdf.NewWriter()
	w.String("LDHT", "")
	w.VarInt("NTOS", 0)
	w.String("PCTK", sessionToken(player.ID))
	if silent {
		w.String("PRIV", "")
		w.GroupStart("SESS")
		w.VarInt("BUID", uint64(player.ID))
		w.VarInt("FRST", 0)
		w.String("KEY", sessionToken(player.ID))
		w.VarInt("LLOG", 0)
		w.String("MAIL", player.Email)
		w.GroupStart("PDTL")
		writePersona(w, player)
		w.GroupEnd()
		w.VarInt("UID", uint64(player.ID))
		w.GroupEnd()
	}
	w.VarInt("SPAM", 0)
	w.String("THST", "")
	w.String("TSUI", "")
	w.String("TURI", "")
	return w
}

func writePersona(w *tdf.Writer, player *persistence.Player) {
	w.String("DSNM", player.DisplayName)
	w.VarInt("LAST", 0)
	w.VarInt("PID", uint64(player.ID))
	w.VarInt("STAS", 0)
	w.VarInt("XREF", 0)
	w.VarInt("XTYP", 0)
}

func sessionToken(playerID int64) string {
	return fmt.Sprintf("%x", playerID)
}
