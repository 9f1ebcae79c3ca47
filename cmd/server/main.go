package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/whisper/board/internal/api"
	"github.com/whisper/board/internal/config"
	"github.com/whisper/board/internal/entry"
	"github.com/whisper/board/internal/logging"
	"github.com/whisper/board/internal/messaging"
	"github.com/whisper/board/internal/presence"
	"github.com/whisper/board/internal/ratelimit"
	"github.com/whisper/board/internal/sweep"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	slog.Info("board server starting",
		"listen_addr", cfg.ListenAddr,
		"max_ttl", cfg.Entries.MaxTTL,
		"presence_window", cfg.Presence.Tracker().Window(),
		"sweep_interval", cfg.Entries.SweepInterval,
		"moderate", cfg.Entries.Moderate,
		"redis_addr", cfg.Redis.Addr,
		"nats_url", cfg.NATS.URL,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	entries := entry.NewStore(entry.WithMaxTTL(cfg.Entries.MaxTTL))
	tracker := presence.NewTracker(cfg.Presence.Tracker(), nil)

	// --- Redis (optional) ---
	var limiter api.Limiter
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			// The limiter fails open until Redis is reachable.
			slog.Warn("redis unreachable at startup", "addr", cfg.Redis.Addr, "err", err)
		}
		limiter = ratelimit.NewLimiter(rdb)
	}

	// --- NATS (optional) ---
	var publisher api.Publisher
	if cfg.NATS.URL != "" {
		natsCfg := messaging.DefaultConfig()
		natsCfg.URL = cfg.NATS.URL
		nc, err := messaging.Connect(natsCfg)
		if err != nil {
			slog.Warn("nats unavailable, events disabled", "err", err)
		} else {
			defer nc.Close()
			publisher = nc
		}
	}

	// --- Background work ---
	sweeper := sweep.New(cfg.Entries.SweepInterval, map[string]sweep.Target{
		"entries":  entries,
		"presence": tracker,
	})
	go sweeper.Start(ctx)

	if configPath != "" {
		go func() {
			err := config.Watch(ctx, configPath, func(next *config.Config) {
				if next.Entries.MaxTTL != entries.MaxTTL() {
					entries.SetMaxTTL(next.Entries.MaxTTL)
					slog.Info("max ttl updated", "max_ttl", next.Entries.MaxTTL)
				}
			})
			if err != nil {
				slog.Error("config watch stopped", "err", err)
			}
		}()
	}

	// --- HTTP ---
	handler := api.NewHandler(entries, tracker, limiter, publisher)
	if cfg.Entries.Moderate {
		handler.EnableModeration()
	}
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.RegisterRoutes(http.NewServeMux(), handler),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		slog.Error("http server failed", "err", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown", "err", err)
	}
	slog.Info("board server stopped")
}
