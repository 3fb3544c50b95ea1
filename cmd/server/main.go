package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tlhunter/take-home-test-uber/internal/api"
	"github.com/tlhunter/take-home-test-uber/internal/config"
	"github.com/tlhunter/take-home-test-uber/internal/store"
	"github.com/tlhunter/take-home-test-uber/internal/stream"
)

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "Path to YAML config")
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// ── Load config ──────────────────────────────────────────────────────────
	loader, err := config.NewLoader(*cfgPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	cfg := loader.Config()
	if err := config.Validate(cfg); err != nil {
		slog.Error("config validation failed", "err", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.ListenAddr = *addr
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Record store ──────────────────────────────────────────────────────────
	db, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		slog.Error("failed to open store", "driver", cfg.Store.Driver, "err", err)
		os.Exit(1)
	}
	defer db.Close()

	if !cfg.Store.SkipReset {
		if err := db.Reset(ctx); err != nil {
			slog.Error("failed to reset events", "err", err)
			os.Exit(1)
		}
		slog.Info("previous events deleted")
	}

	writer := store.NewWriter(db, logger, cfg.Server.WriteQueueDepth)

	// ── Ingestion ─────────────────────────────────────────────────────────────
	dial := func(ctx context.Context) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, "tcp", cfg.Server.EmitterAddr)
	}
	sup := stream.NewSupervisor(dial, writer, logger)

	streamDone := make(chan error, 1)
	go func() {
		backoff := time.Duration(cfg.Server.ReconnectBackoffMs) * time.Millisecond
		for {
			err := sup.Run(ctx)
			if err == nil || ctx.Err() != nil {
				streamDone <- err
				return
			}
			// Reconnection policy lives here, outside the supervisor.
			if !cfg.Server.Reconnect {
				streamDone <- err
				return
			}
			slog.Warn("stream lost, redialling", "err", err, "backoff", backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				streamDone <- ctx.Err()
				return
			}
		}
	}()

	// ── HTTP server ───────────────────────────────────────────────────────────
	handler := api.New(db, sup, logger)
	srv := &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting",
			"addr", cfg.Server.ListenAddr, "emitter", cfg.Server.EmitterAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// ── Shutdown ──────────────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		slog.Info("shutting down…")
	case err := <-streamDone:
		switch {
		case err == nil && cfg.Server.ServeAfterStreamEnd:
			slog.Info("stream ended, continuing to serve queries")
			<-quit
			slog.Info("shutting down…")
		case err == nil:
			slog.Info("stream ended, shutting down")
		default:
			slog.Error("ingestion stopped", "err", err)
		}
	}

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)
	cancel() // stop the supervisor
	writer.Drain()
	slog.Info("goodbye")
}
