package migrations

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/go-sql-driver/mysql"
	"github.com/pressly/goose/v3"

	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/config"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/database"
)

// MigrationConfig holds configuration for database migrations
type MigrationConfig struct {
	Dir        string
	DBDriver   string
	DBSource   string
	DirAbsPath string
}

// NewMigrationConfig builds the migration source from the database section of
// the service configuration, so migrations see the same DSN (UTC, parseTime)
// as the running service.
func NewMigrationConfig(cfg *config.DatabaseConfig) (*MigrationConfig, error) {
	dir := os.Getenv("MIGRATION_DIR")
	if dir == "" {
		dir = "./migrations"
	}

	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path for migration directory: %w", err)
	}

	return &MigrationConfig{
		Dir:        dir,
		DBDriver:   "mysql",
		DBSource:   database.DSN(cfg),
		DirAbsPath: absPath,
	}, nil
}

// InitDB initializes and returns a database connection for migrations
func (cfg *MigrationConfig) InitDB() (*sql.DB, error) {
	db, err := sql.Open(cfg.DBDriver, cfg.DBSource)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// RunMigrations applies all pending migrations
func (cfg *MigrationConfig) RunMigrations() error {
	db, err := cfg.InitDB()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := goose.SetDialect("mysql"); err != nil {
		return err
	}
	return goose.Up(db, cfg.Dir)
}

// GetMigrationStatus returns the status of all migrations
func (cfg *MigrationConfig) GetMigrationStatus() error {
	db, err := cfg.InitDB()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := goose.SetDialect("mysql"); err != nil {
		return err
	}
	return goose.Status(db, cfg.Dir)
}
