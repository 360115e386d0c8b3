package database

import (
	"fmt"

	"github.com/lightcore-app/lightcore/internal/brain"
	"github.com/lightcore-app/lightcore/internal/goals"
	"github.com/lightcore-app/lightcore/internal/insights"
	"github.com/lightcore-app/lightcore/internal/integrations"
	"github.com/lightcore-app/lightcore/internal/journal"
	"github.com/lightcore-app/lightcore/internal/streaks"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OpenSQLite establishes a SQLite connection and performs schema migrations.
func OpenSQLite(path string, logger *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&journal.Entry{},
		&journal.Event{},
		&streaks.Profile{},
		&goals.Goal{},
		&insights.Nudge{},
		&brain.Context{},
		&integrations.Connection{},
		&migrationRecord{},
	); err != nil {
		return nil, err
	}

	if err := applyMigrations(db, logger); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("path", path))
	}

	return db, nil
}
