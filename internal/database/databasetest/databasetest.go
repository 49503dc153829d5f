// Package databasetest provides throwaway migrated databases for tests.
package databasetest

import (
	"fmt"
	"testing"

	"videohub/internal/database"
	"videohub/internal/models"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open returns an isolated in-memory sqlite database with the schema migrated.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	// shared-cache sqlite reports SQLITE_LOCKED on concurrent writers
	sqlDB.SetMaxOpenConns(1)

	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	t.Cleanup(func() { sqlDB.Close() })
	return db
}

// SeedTags inserts one tag per slug and returns them in the same order.
func SeedTags(t *testing.T, db *gorm.DB, slugs ...string) []models.Tag {
	t.Helper()

	tags := make([]models.Tag, 0, len(slugs))
	for _, slug := range slugs {
		tag := models.Tag{ID: uuid.NewString(), Slug: slug, Title: slug}
		if err := db.Create(&tag).Error; err != nil {
			t.Fatalf("failed to seed tag %s: %v", slug, err)
		}
		tags = append(tags, tag)
	}
	return tags
}

// SeedVideo inserts v as-is.
func SeedVideo(t *testing.T, db *gorm.DB, v models.Video) models.Video {
	t.Helper()

	if err := db.Create(&v).Error; err != nil {
		t.Fatalf("failed to seed video %s: %v", v.ID, err)
	}
	return v
}
