package main

import (
	"github.com/selam/loto90-backend/config"
	"github.com/selam/loto90-backend/utils/logger"
)

// Standalone migration runner for deploys that keep DDL out of the
// server process.
func main() {
	log := logger.New()
	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required to migrate")
	}
	if _, err := config.SetupDatabase(cfg, log); err != nil {
		log.Fatalf("migration failed: %v", err)
	}
	log.Info("migration completed")
}
