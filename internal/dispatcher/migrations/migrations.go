// Package migrations embeds the Dispatcher's checkpoint table schema.
package migrations

import (
	"database/sql"
	_ "embed"

	"github.com/riftline/evmsync/internal/db"
	"github.com/riftline/evmsync/internal/logger"
)

//go:embed 001_checkpoint_schema.sql
var mig001 string

//go:embed 002_block_log_progress.sql
var mig002 string

func migrations() []db.Migration {
	return []db.Migration{
		{ID: "001_checkpoint_schema.sql", SQL: mig001},
		{ID: "002_block_log_progress.sql", SQL: mig002},
	}
}

// RunMigrations applies the Dispatcher's schema to the database at dbPath.
func RunMigrations(dbPath string) error {
	return db.RunMigrations(dbPath, migrations())
}

// RunMigrationsDB applies the Dispatcher's schema to an already-open DB handle.
func RunMigrationsDB(log *logger.Logger, sqlDB *sql.DB) error {
	return db.RunMigrationsDB(log, sqlDB, migrations())
}
