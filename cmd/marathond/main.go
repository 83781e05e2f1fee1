// cmd/marathond/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ratewatch/marathon/internal/api"
	"github.com/ratewatch/marathon/internal/config"
	"github.com/ratewatch/marathon/internal/harness"
	"github.com/ratewatch/marathon/internal/scenario"
	"github.com/ratewatch/marathon/internal/target"
)

func main() {
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	port := 8600
	if p := os.Getenv("PORT"); p != "" {
		if _, err := fmt.Sscanf(p, "%d", &port); err != nil {
			logger.Error("invalid port number", zap.String("port", p), zap.Error(err))
			port = 8600
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := prometheus.NewRegistry()
	manager := harness.NewManager(logger, registry)

	defaults := harness.Options{
		Target: target.NewSim(target.DefaultSimConfig()),
	}

	// Fixture payloads hot-reload from disk when a directory is given;
	// otherwise the built-in currency fixtures are used.
	if dir := os.Getenv("FIXTURES_DIR"); dir != "" {
		store, err := scenario.NewStore(dir, logger)
		if err != nil {
			logger.Fatal("fixture store", zap.String("dir", dir), zap.Error(err))
		}
		defer func() { _ = store.Close() }()
		defaults.Fixtures = store
		logger.Info("using fixture directory", zap.String("dir", dir))
	}
	manager.SetDefaults(defaults)

	// An optional run config starts a soak immediately at boot.
	if path := os.Getenv("RUN_CONFIG"); path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			logger.Fatal("run config", zap.String("path", path), zap.Error(err))
		}
		run, err := manager.Launch(ctx, cfg, harness.Options{})
		if err != nil {
			logger.Fatal("launch run", zap.Error(err))
		}
		logger.Info("boot run launched",
			zap.String("run_id", run.ID),
			zap.String("name", cfg.Name),
			zap.Duration("duration", cfg.Duration))
	}

	server := api.NewServer(ctx, manager, registry, logger)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down, draining active runs...")
		cancel()
		manager.StopAll()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", zap.Error(err))
		}
	}()

	logger.Info("marathond listening",
		zap.Int("port", port),
		zap.String("metrics", fmt.Sprintf("http://localhost:%d/metrics", port)))

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server failed", zap.Error(err))
	}
}
