package config

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/selam/loto90-backend/models"
)

// SetupDatabase connects to Postgres and runs migrations. A missing
// DATABASE_URL disables persistence: solo and peer matches never need a
// database and the relay server degrades to in-memory rooms only.
func SetupDatabase(cfg Config, log *zap.SugaredLogger) (*gorm.DB, error) {
	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL not set; match history and profiles disabled")
		return nil, nil
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := db.AutoMigrate(
		&models.MatchRecord{},
		&models.KVEntry{},
	); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info("database connected and migrated")
	return db, nil
}
