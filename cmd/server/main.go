package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pwscache/internal/api"
	"pwscache/internal/config"
	"pwscache/internal/metrics"
	"pwscache/internal/upstream"
	"pwscache/internal/weather"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	m := metrics.New()
	client := upstream.NewClient(cfg.UpstreamBaseURL, cfg.PWSID, cfg.APIKey, cfg.Units)
	cache := weather.NewCache[json.RawMessage]()
	svc := weather.NewService(cache, client, cfg.CacheDuration, weather.WithMetrics(m))

	mux := http.NewServeMux()
	api.NewHandler(svc).RegisterRoutes(mux)
	mux.Handle("GET /metrics", m.Handler())

	srv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      api.AccessLog(logger, mux),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr, "cache_duration", cfg.CacheDuration)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	slog.Info("server stopped")
}
