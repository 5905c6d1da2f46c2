package database

import (
	"fmt"
	"log/slog"

	"akta-archive/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the SQLite database at path and auto-migrates the schema.
func Open(path string, log *slog.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database at %s: %w", path, err)
	}
	log.Info("database connection established", slog.String("path", path))

	if err := Migrate(db); err != nil {
		return nil, err
	}
	log.Info("database schema migrated")
	return db, nil
}

// Migrate creates or updates the tables the archive needs.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.MarriageRecord{}); err != nil {
		return fmt.Errorf("failed to auto-migrate database schema: %w", err)
	}
	return nil
}

// Ping reports whether the underlying connection is usable.
func Ping(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
