package database

import (
	"fmt"

	"videohub/internal/config"
	"videohub/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open initializes the database connection.
func Open(cfg *config.Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{}
	if cfg.IsProduction() {
		gormCfg.Logger = logger.Default.LogMode(logger.Warn)
	}
	db, err := gorm.Open(postgres.Open(cfg.PostgresURI), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return db, nil
}

// Migrate creates or updates the tables backing the models.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Tag{}, &models.Video{}); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}
