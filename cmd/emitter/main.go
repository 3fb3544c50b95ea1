package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tlhunter/take-home-test-uber/internal/config"
	"github.com/tlhunter/take-home-test-uber/internal/sim"
)

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "Path to YAML config")
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := sim.NewPool(logger)
	simulator := sim.New(logger, pool, sim.ParamsFromConfig(&cfg.Emitter))

	// ── Hot-reload watcher ────────────────────────────────────────────────────
	loader.OnChange(func(newCfg *config.Config) {
		simulator.SetParams(sim.ParamsFromConfig(&newCfg.Emitter))
	})
	stopWatch, err := loader.Watch()
	if err != nil {
		slog.Warn("config watcher unavailable (hot-reload disabled)", "err", err)
	} else {
		defer stopWatch()
	}

	// ── Listener ──────────────────────────────────────────────────────────────
	ln, err := net.Listen("tcp", cfg.Emitter.ListenAddr)
	if err != nil {
		slog.Error("failed to listen", "addr", cfg.Emitter.ListenAddr, "err", err)
		os.Exit(1)
	}
	go func() {
		if err := pool.Serve(ctx, ln); err != nil && ctx.Err() == nil {
			slog.Error("accept loop failed", "err", err)
			os.Exit(1)
		}
	}()
	slog.Info("emitting sample data", "addr", cfg.Emitter.ListenAddr)

	// Give clients a moment to connect before the fleet starts moving.
	warmup := time.Duration(cfg.Emitter.WarmupMs) * time.Millisecond
	slog.Info("waiting before starting simulation", "warmup", warmup)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-time.After(warmup):
		slog.Info("commencing")
		go simulator.Run(ctx)
	case <-quit:
		slog.Info("goodbye")
		return
	}

	<-quit
	slog.Info("shutting down…")
	cancel()
	pool.CloseAll()
	slog.Info("goodbye")
}
