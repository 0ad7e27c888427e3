package main

import (
	"errors"
	"flag"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rumahku/billing/internal/config"
	"github.com/rumahku/billing/internal/logger"
	"github.com/rumahku/billing/internal/postgres"
	"github.com/rumahku/billing/internal/types"
)

func main() {
	// Parse command line flags
	direction := flag.String("direction", "up", "Migration direction: up or down")
	steps := flag.Int("steps", 0, "Number of migrations to apply, 0 applies all")
	showVersion := flag.Bool("version", false, "Print the current schema version and exit")
	flag.Parse()

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := logger.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	if cfg.Store.Provider != types.StoreProviderPostgres {
		logger.Fatalw("Migrations only apply to the postgres store", "store_provider", cfg.Store.Provider)
	}

	// Get DSN from config
	dsn := cfg.Postgres.GetDSN()
	logger.Infow("Connecting to database", "host", cfg.Postgres.Host)

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		logger.Fatalw("Failed to connect to postgres", "error", err)
	}

	m, err := postgres.NewMigrator(db.DB)
	if err != nil {
		logger.Fatalw("Failed to create migrator", "error", err)
	}
	defer m.Close()

	if *showVersion {
		version, dirty, err := m.Version()
		if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
			logger.Fatalw("Failed to read schema version", "error", err)
		}
		fmt.Printf("version=%d dirty=%t\n", version, dirty)
		return
	}

	logger.Infow("Running database migrations...", "direction", *direction, "steps", *steps)

	switch {
	case *steps > 0 && *direction == "down":
		err = m.Steps(-*steps)
	case *steps > 0:
		err = m.Steps(*steps)
	case *direction == "down":
		err = m.Down()
	case *direction == "up":
		err = m.Up()
	default:
		logger.Fatalw("Unknown migration direction", "direction", *direction)
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Fatalw("Failed to apply migrations", "error", err)
	}

	logger.Info("Migration completed successfully")
	fmt.Println("Migration process completed")
}
