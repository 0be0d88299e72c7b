package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/app"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/config"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/database"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/observability"
)

// worker runs the task queue pool, the reaper, the sweep and the kafka
// consumer without the HTTP API.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration loading failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging.Level, cfg.Logging.Encoding)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		if err := logger.Sync(); err != nil {
			log.Printf("Failed to sync logger: %v", err)
		}
	}()

	ctx := context.Background()
	db, err := database.NewMariaDB(ctx, &cfg.Database, observability.NewMetrics(), logger)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	container := app.NewContainer(cfg, db, logger)
	defer container.Close()

	workers := app.NewWorkers(container)
	workers.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info(ctx, "Shutdown signal received", zap.String("signal", sig.String()))

	workers.Stop(cfg.Server.ShutdownTimeout)
}
