package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/TIZ36/ai-chatbotee-sub000/internal/config"
)

// runServe loads configuration, wires every runtime component, and serves
// until SIGINT/SIGTERM, then shuts down gracefully within 30 seconds.
func runServe(ctx context.Context, configPath string, debug bool) error {
	logger := buildLogger(debug)
	slog.SetDefault(logger)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("nexusactor: starting", "config", configPath, "agents", len(cfg.Agents))

	rt, err := buildRuntime(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build runtime: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort)
	api := newAPIServer(rt, addr, logger)

	serveErr := make(chan error, 1)
	go func() {
		if err := api.Start(); err != nil {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	select {
	case <-ctx.Done():
		logger.Info("nexusactor: shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			rt.shutdown(context.Background())
			return fmt.Errorf("api server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := api.Shutdown(shutdownCtx); err != nil {
		logger.Warn("nexusactor: api shutdown error", "error", err)
	}
	rt.shutdown(shutdownCtx)

	logger.Info("nexusactor: stopped")
	return nil
}

func buildLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
