// Command server runs the main Blaze listener plus its HTTP, telemetry, and
// QoS companions, wiring every internal/* package into one process
// (spec.md §6), modeled on the teacher's cmd/gameserver orchestration:
// config-first startup, database migrations, then an errgroup running every
// listener in parallel until signaled.
package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/julienschmidt/httprouter"
	"golang.org/x/sync/errgroup"

	"github.com/blazerelay/server/internal/config"
	"github.com/blazerelay/server/internal/db"
	"github.com/blazerelay/server/internal/gamemanager"
	"github.com/blazerelay/server/internal/gaw"
	"github.com/blazerelay/server/internal/handlers"
	"github.com/blazerelay/server/internal/leaderboard"
	"github.com/blazerelay/server/internal/qos"
	"github.com/blazerelay/server/internal/redirector"
	"github.com/blazerelay/server/internal/retriever"
	"github.com/blazerelay/server/internal/session"
	"github.com/blazerelay/server/internal/telemetry"
)

// ConfigPath is the default config file location, overridable by
// BLAZERELAY_CONFIG.
const ConfigPath = "config/server.yaml"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfgPath := ConfigPath
	if p := os.Getenv("BLAZERELAY_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	})))
	slog.Info("blazerelay server starting",
		"main_port", cfg.MainPort, "redirector_port", cfg.RedirectorPort,
		"telemetry_port", cfg.TelemetryPort, "qos_port", cfg.QosPort, "http_port", cfg.HTTPPort)

	database, err := db.New(ctx, cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer database.Close()
	slog.Info("database connected")

	if err := db.RunMigrations(ctx, cfg.Database.DSN()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("database migrations applied")

	var retrieverClient *retriever.Client
	if cfg.Retriever.Enabled {
		addr := fmt.Sprintf("%s:%d", cfg.Retriever.Host, cfg.Retriever.Port)
		retrieverClient, err = retriever.Dial(ctx, addr, &tls.Config{})
		if err != nil {
			return fmt.Errorf("dialing retriever %s: %w", addr, err)
		}
		defer retrieverClient.Close()
		slog.Info("retriever connected", "addr", addr)
	} else {
		slog.Info("retriever disabled, origin login will fail with AUTH_ORIGIN_ACCESS")
	}

	manager := gamemanager.New()
	leaderboardCache := leaderboard.New(database.Players(), database.PlayerData(), database.Leaderboard())
	presence := handlers.NewRegistry()

	deps := &handlers.Deps{
		Players:     database.Players(),
		PlayerData:  database.PlayerData(),
		GaW:         database.GalaxyAtWar(),
		Manager:     manager,
		Leaderboard: leaderboardCache,
		Retriever:   retrieverClient,
		Config:      cfg,
		Presence:    presence,
	}
	handler := handlers.New(deps)

	var tlsConfig *tls.Config
	if cfg.TLS.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		if err != nil {
			return fmt.Errorf("loading TLS keypair: %w", err)
		}
		tlsConfig = &tls.Config{Certificates: []tls.Certificate{cert}}
	}

	gawServer := gaw.New(gaw.Config{Decay: cfg.GaWDecay, Promotions: cfg.GaWPromotions}, database.Players(), database.PlayerData(), database.GalaxyAtWar())
	httpRouter := httprouter.New()
	gawServer.Register(httpRouter)
	httpListener := gaw.NewListenServer(fmt.Sprintf(":%d", cfg.HTTPPort), httpRouter)

	redirectorServer := redirector.New(tlsConfig, cfg.ExternalHost, uint16(cfg.MainPort))
	telemetryServer := telemetry.New()
	qosServer := qos.New()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("starting main listener", "port", cfg.MainPort)
		return runMainListener(gctx, fmt.Sprintf(":%d", cfg.MainPort), handler, presence)
	})
	g.Go(func() error {
		slog.Info("starting redirector", "port", cfg.RedirectorPort)
		if err := redirectorServer.Run(gctx, fmt.Sprintf(":%d", cfg.RedirectorPort)); err != nil {
			return fmt.Errorf("redirector: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		slog.Info("starting telemetry listener", "port", cfg.TelemetryPort)
		if err := telemetryServer.Run(gctx, fmt.Sprintf(":%d", cfg.TelemetryPort)); err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		slog.Info("starting qos listener", "port", cfg.QosPort)
		if err := qosServer.Run(gctx, fmt.Sprintf(":%d", cfg.QosPort)); err != nil {
			return fmt.Errorf("qos: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		slog.Info("starting galaxy-at-war http listener", "port", cfg.HTTPPort)
		if err := httpListener.Run(gctx); err != nil {
			return fmt.Errorf("gaw http: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// runMainListener accepts connections and runs one session actor per
// connection, assigning monotonically increasing session ids (spec.md §4.D).
func runMainListener(ctx context.Context, addr string, handler *handlers.Handler, presence *handlers.Registry) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	var nextSessionID atomic.Uint32
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				slog.Error("main listener accept failed", "error", err)
				continue
			}
		}

		id := session.ID(nextSessionID.Add(1))
		st := handlers.NewState(uint32(id))

		sess := session.New(id, conn, nil)
		rt := handler.NewSessionRouter(st, sess)
		sess.SetRouter(rt)
		sess.OnClose = func() { handler.Disconnect(st, sess) }

		go sess.Run(ctx)
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
