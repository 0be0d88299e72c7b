package main

import (
	"context"
	"log"

	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/cmd/api/docs"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/app"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/config"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/database"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/observability"
)

// @title           Absence Scheduler API
// @version         1.0
// @description     Schedules and runs automatic absence reconciliation for courses and exams.

// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Type "Bearer <your_token>" (include the word Bearer and a space)
func main() {
	// Load configuration first and validate before any resource initialization
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration loading failed: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	docs.SwaggerInfo.BasePath = "/api/v1"

	logger, err := observability.NewLogger(cfg.Logging.Level, cfg.Logging.Encoding)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		if err := logger.Sync(); err != nil {
			log.Printf("Failed to sync logger: %v", err)
		}
	}()
	metrics := observability.NewMetrics()

	db, err := database.NewMariaDB(context.Background(), &cfg.Database, metrics, logger)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	container := app.NewContainer(cfg, db, logger)
	server := app.NewServer(container)

	if err := server.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
