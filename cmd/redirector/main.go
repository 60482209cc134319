// Command redirector runs only the TLS redirector listener, for deployments
// that place it on a separate host from the main Blaze listener (spec.md
// §4.A), mirroring the teacher's standalone cmd/loginserver binary.
package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/blazerelay/server/internal/config"
	"github.com/blazerelay/server/internal/redirector"
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
	slog.Info("blazerelay redirector starting", "port", cfg.RedirectorPort, "main_host", cfg.ExternalHost, "main_port", cfg.MainPort)

	if cfg.TLS.CertFile == "" {
		return fmt.Errorf("redirector requires tls.cert_file/tls.key_file in config")
	}
	cert, err := tls.LoadX509KeyPair(cfg.TLS.CertFile, cfg.TLS.KeyFile)
	if err != nil {
		return fmt.Errorf("loading TLS keypair: %w", err)
	}
	tlsConfig := &tls.Config{Certificates: []tls.Certificate{cert}}

	server := redirector.New(tlsConfig, cfg.ExternalHost, uint16(cfg.MainPort))
	if err := server.Run(ctx, fmt.Sprintf(":%d", cfg.RedirectorPort)); err != nil {
		return fmt.Errorf("redirector: %w", err)
	}
	return nil
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
