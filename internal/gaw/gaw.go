// Package gaw serves the galaxy-at-war companion surface the game client
// talks to over plain HTTP: a shared-token login stub and the two ratings
// routes, all XML (spec.md §6.3), grounded on the Seednode-partybox example's
// httprouter.Handle closures taking a *Config and returning a handler.
package gaw

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"text/template"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/blazerelay/server/internal/persistence"
)

// Config carries the tuning the ratings routes need.
type Config struct {
	Decay       float32
	Promotions  bool
}

// Server wires the three galaxy-at-war routes onto an httprouter.Router.
type Server struct {
	cfg     Config
	players persistence.PlayerRepository
	data    persistence.PlayerDataRepository
	gaw     persistence.GalaxyAtWarRepository
}

// New returns a Server backed by the given repositories.
func New(cfg Config, players persistence.PlayerRepository, data persistence.PlayerDataRepository, gawRepo persistence.GalaxyAtWarRepository) *Server {
	return &Server{cfg: cfg, players: players, data: data, gaw: gawRepo}
}

// Register mounts the routes onto router.
func (s *Server) Register(router *httprouter.Router) {
	router.GET("/gaw/authentication/sharedTokenLogin", s.sharedTokenLogin)
	router.GET("/gaw/galaxyatwar/getRatings/:id", s.getRatings)
	router.GET("/gaw/galaxyatwar/increaseRatings/:id", s.increaseRatings)
}

var loginTemplate = template.Must(template.New("sharedTokenLogin").Parse(`<?xml version="1.0" encoding="UTF-8"?>
<fulllogin>
	<canageup>0</canageup>
	<legaldochost/>
	<needslegaldoc>0</needslegaldoc>
	<pclogintoken/>
	<privacypolicyuri/>
	<sessioninfo>
		<blazeuserid/>
		<isfirstlogin>0</isfirstlogin>
		<sessionkey>{{.SessionKey}}</sessionkey>
		<lastlogindatetime/>
		<email/>
		<personadetails>
			<displayname/>
			<lastauthenticated/>
			<personaid/>
			<status>UNKNOWN</status>
			<extid>0</extid>
			<exttype>BLAZE_EXTERNAL_REF_TYPE_UNKNOWN</exttype>
		</personadetails>
		<userid/>
	</sessioninfo>
	<isoflegalcontactage>0</isoflegalcontactage>
	<toshost/>
	<termsofserviceuri/>
	<tosuri/>
</fulllogin>
`))

// sharedTokenLogin hands the auth query value straight back as the session
// key; the hex player id doubles as the token for the two ratings routes
// below (spec.md §9's supplemented "token-based GaW session verification").
func (s *Server) sharedTokenLogin(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeTemplate(w, loginTemplate, struct{ SessionKey string }{SessionKey: r.URL.Query().Get("auth")})
}

var ratingsTemplate = template.Must(template.New("ratings").Parse(`<?xml version="1.0" encoding="UTF-8"?>
<galaxyatwargetratings>
	<ratings>
		<ratings>{{.GroupA}}</ratings>
		<ratings>{{.GroupB}}</ratings>
		<ratings>{{.GroupC}}</ratings>
		<ratings>{{.GroupD}}</ratings>
		<ratings>{{.GroupE}}</ratings>
	</ratings>
	<level>{{.Level}}</level>
	<assets>
		<assets>{{.Promotions}}</assets>
		<assets>0</assets>
		<assets>0</assets>
		<assets>0</assets>
		<assets>0</assets>
		<assets>0</assets>
		<assets>0</assets>
		<assets>0</assets>
		<assets>0</assets>
		<assets>0</assets>
	</assets>
</galaxyatwargetratings>
`))

type ratingsView struct {
	GroupA, GroupB, GroupC, GroupD, GroupE uint16
	Level                                  uint32
	Promotions                             uint32
}

var invalidTokenTemplate = template.Must(template.New("gawInvalidToken").Parse(`<?xml version="1.0" encoding="UTF-8"?>
<error>
	<component>2049</component>
	<errorCode>1074003968</errorCode>
	<errorName>ERR_AUTHENTICATION_REQUIRED</errorName>
</error>
`))

var serverErrorTemplate = template.Must(template.New("gawServerError").Parse(`<?xml version="1.0" encoding="UTF-8"?>
<error>
	<errorcode>500</errorcode>
	<errormessage>Internal server error</errormessage>
</error>
`))

func (s *Server) getRatings(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	gawData, promotions, err := s.playerRatings(r.Context(), p.ByName("id"))
	if err != nil {
		writeGAWError(w, err)
		return
	}
	writeTemplate(w, ratingsTemplate, ratingsViewOf(gawData, promotions))
}

func (s *Server) increaseRatings(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	gawData, promotions, err := s.playerRatings(r.Context(), p.ByName("id"))
	if err != nil {
		writeGAWError(w, err)
		return
	}

	delta := [5]uint16{
		queryUint16(r, "rinc|0"),
		queryUint16(r, "rinc|1"),
		queryUint16(r, "rinc|2"),
		queryUint16(r, "rinc|3"),
		queryUint16(r, "rinc|4"),
	}

	gawData, err = s.gaw.Add(r.Context(), gawData.PlayerID, delta)
	if err != nil {
		writeGAWError(w, err)
		return
	}
	writeTemplate(w, ratingsTemplate, ratingsViewOf(gawData, promotions))
}

// playerRatings resolves the hex token to a player, applies decay, and tallies
// promotions across the player's classes (spec.md §4.H's class parsing,
// reused here rather than re-derived per §9).
func (s *Server) playerRatings(ctx context.Context, token string) (*persistence.GalaxyAtWar, uint32, error) {
	playerID, err := strconv.ParseInt(token, 16, 64)
	if err != nil {
		return nil, 0, errGAWInvalidToken
	}

	player, err := s.players.ByID(ctx, playerID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, 0, errGAWInvalidToken
		}
		return nil, 0, err
	}

	gawData, err := s.gaw.GetOrCreate(ctx, player.ID, s.cfg.Decay)
	if err != nil {
		return nil, 0, err
	}
	gawData, err = s.gaw.ApplyDecay(ctx, player.ID, s.cfg.Decay)
	if err != nil {
		return nil, 0, err
	}

	promotions, err := s.promotions(ctx, player.ID)
	if err != nil {
		return nil, 0, err
	}
	return gawData, promotions, nil
}

func (s *Server) promotions(ctx context.Context, playerID int64) (uint32, error) {
	if !s.cfg.Promotions {
		return 0, nil
	}
	classes, err := s.data.GetClasses(ctx, playerID)
	if err != nil {
		return 0, err
	}
	var total uint32
	for _, c := range classes {
		total += c.Promotions
	}
	return total, nil
}

func ratingsViewOf(g *persistence.GalaxyAtWar, promotions uint32) ratingsView {
	total := uint32(g.GroupA) + uint32(g.GroupB) + uint32(g.GroupC) + uint32(g.GroupD) + uint32(g.GroupE)
	return ratingsView{
		GroupA: g.GroupA, GroupB: g.GroupB, GroupC: g.GroupC, GroupD: g.GroupD, GroupE: g.GroupE,
		Level:      total / 5,
		Promotions: promotions,
	}
}

func queryUint16(r *http.Request, key string) uint16 {
	v, err := strconv.ParseUint(r.URL.Query().Get(key), 10, 16)
	if err != nil {
		return 0
	}
	return uint16(v)
}

var errGAWInvalidToken = errors.New("gaw: token does not resolve to a player")

func writeGAWError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "text/xml")
	if errors.Is(err, errGAWInvalidToken) {
		w.WriteHeader(http.StatusOK)
		writeTemplate(w, invalidTokenTemplate, nil)
		return
	}
	slog.Error("gaw request failed", "error", err)
	w.WriteHeader(http.StatusInternalServerError)
	writeTemplate(w, serverErrorTemplate, nil)
}

func writeTemplate(w http.ResponseWriter, tmpl *template.Template, data any) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		slog.Error("gaw template execute failed", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "text/xml")
	}
	w.Write(buf.Bytes())
}

// ListenServer wraps http.Server lifecycle methods so cmd/server can Run/Close it
// the same way it does the other listeners.
type ListenServer struct {
	httpServer *http.Server
}

// NewListenServer builds an http.Server bound to addr serving router.
func NewListenServer(addr string, router *httprouter.Router) *ListenServer {
	return &ListenServer{httpServer: &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

// Run serves until ctx is cancelled.
func (l *ListenServer) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		l.httpServer.Close()
	}()
	err := l.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Close closes the underlying http.Server immediately.
func (l *ListenServer) Close() error {
	return l.httpServer.Close()
}
