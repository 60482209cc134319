package handlers

import (
	"context"
	"strconv"
	"strings"

	"github.com/blazerelay/server/internal/blaze/tdf"
	"github.com/blazerelay/server/internal/router"
)

// preAuth reports the component list the client should expect and the
// server's base configuration. The original's PreAuthResponse carries a
// large fixed block of client tuning values with no server-side meaning in
// this port; only the fields downstream handlers actually depend on are
// reproduced (original_source/src/session/models/util.rs).
func (h *Handler) preAuth() router.Handler {
	return func(_ context.Context, _ router.Request) (*router.Response, error) {
		w := tdf.NewWriter()
		w.GroupStart("ADDR")
		w.GroupEnd()
		w.String("ASRC", "303107")
		w.VarIntList("CIDS", []uint64{1, 2, 4, 7, 9, 28})
		w.String("CNGN", "")
		w.StringMap("CONF", map[string]string{
			"pingPeriod":            "20s",
			"voipHeadsetUpdateRate": "1000",
		})
		w.VarInt("MINR", 0)
		w.String("PLAT", "pc")
		return &router.Response{Body: w}, nil
	}
}

// postAuth reports where the telemetry and QoS companion listeners live so
// the client can connect to them, derived from the configured ports
// (original_source/src/session/models/util.rs TelemetryServer/QosServer).
func (h *Handler) postAuth(_ *State) router.Handler {
	return func(_ context.Context, _ router.Request) (*router.Response, error) {
		w := tdf.NewWriter()
		w.GroupStart("PSS")
		w.String("ADRS", h.deps.Config.ExternalHost)
		w.VarInt("PORT", uint64(h.deps.Config.QosPort))
		w.String("SKEY", "")
		w.GroupEnd()
		w.GroupStart("TELE")
		writeTelemetryGroupFromConfig(w, h.deps.Config.ExternalHost, h.deps.Config.TelemetryPort)
		w.GroupEnd()
		return &router.Response{Body: w}, nil
	}
}

// fetchClientConfig serves the login menu message for any ME3_-prefixed
// client-config id, with {v}/{n}/{ip} placeholders substituted ({n} is the
// number of sessions in the presence registry); other ids get an empty map
// (spec.md §4.B "menu message formatting").
func (h *Handler) fetchClientConfig() router.Handler {
	return func(_ context.Context, req router.Request) (*router.Response, error) {
		id, err := req.Body.ExpectString("CFID")
		if err != nil {
			return nil, router.DecodeError(err)
		}

		w := tdf.NewWriter()
		if id == "ME3_LiveTlkMap" || strings.HasPrefix(id, "ME3_") {
			online := 0
			if h.deps.Presence != nil {
				h.deps.Presence.mu.RLock()
				online = len(h.deps.Presence.sessions)
				h.deps.Presence.mu.RUnlock()
			}
			message := strings.NewReplacer(
				"{v}", "1.0",
				"{n}", strconv.Itoa(online),
				"{ip}", h.deps.Config.ExternalHost,
			).Replace(h.deps.Config.MenuMessage)
			w.StringMap("CONF", map[string]string{"1": message})
		} else {
			w.StringMap("CONF", map[string]string{})
		}
		return &router.Response{Body: w}, nil
	}
}

// getTelemetryServer answers the standalone telemetry lookup some clients
// issue ahead of PostAuth.
func (h *Handler) getTelemetryServer() router.Handler {
	return func(_ context.Context, _ router.Request) (*router.Response, error) {
		w := tdf.NewWriter()
		w.GroupStart("TELE")
		writeTelemetryGroupFromConfig(w, h.deps.Config.ExternalHost, h.deps.Config.TelemetryPort)
		w.GroupEnd()
		return &router.Response{Body: w}, nil
	}
}

func writeTelemetryGroupFromConfig(w *tdf.Writer, host string, port int) {
	w.String("ADRS", host)
	w.VarInt("ANON", 0)
	w.String("DISA", "US,CN")
	w.String("FILT", "-UION/****")
	w.VarInt("LOC", 0x656e5553)
	w.String("NOOK", "")
	w.VarInt("PORT", uint64(port))
	w.VarInt("SDLY", 15000)
	w.String("SESS", "")
	w.VarInt("SPCT", 0x7530)
	w.String("STIM", "")
}

// getPingSiteInfo reports a single ping site pointed at the QoS listener,
// enough for the client to pick a best server.
func (h *Handler) getPingSiteInfo() router.Handler {
	return func(_ context.Context, _ router.Request) (*router.Response, error) {
		w := tdf.NewWriter()
		w.String("BSDI", "zew1")
		w.VarInt("MAXP", 1)
		w.GroupList("PSLT", 1)
		w.String("PSIT", "zew1")
		w.VarInt("LATL", 0)
		w.String("SVID", strconv.Itoa(h.deps.Config.QosPort))
		w.GroupEnd()
		return &router.Response{Body: w}, nil
	}
}
