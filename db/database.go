package db

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDB opens (creating if necessary) the SQLite database at databasePath
// and runs migrations.
func InitDB(databasePath string) (*gorm.DB, error) {
	slog.Debug("Initializing database", "path", databasePath)

	gormDB, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{
		Logger: logger.Default.LogMode(getGormLogLevel()),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := AutoMigrateAll(gormDB); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	slog.Debug("Database initialized successfully", "path", databasePath)
	return gormDB, nil
}

// AutoMigrateAll migrates all Quayside models.
func AutoMigrateAll(gormDB *gorm.DB) error {
	return gormDB.AutoMigrate(
		&ProjectModel{},
		&DeploymentModel{},
	)
}

// getGormLogLevel maps the application log level to the corresponding GORM
// log level.
func getGormLogLevel() logger.LogLevel {
	ctx := slog.Default()

	switch {
	case ctx.Enabled(context.TODO(), slog.LevelDebug):
		return logger.Info // Show SQL queries only when debug logging is enabled
	case ctx.Enabled(context.TODO(), slog.LevelInfo), ctx.Enabled(context.TODO(), slog.LevelWarn):
		return logger.Warn
	case ctx.Enabled(context.TODO(), slog.LevelError):
		return logger.Error
	default:
		return logger.Silent
	}
}
