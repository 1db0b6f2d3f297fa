// Package migrations embeds the Cache Store's schema migrations.
package migrations

import (
	"database/sql"
	_ "embed"

	"github.com/riftline/evmsync/internal/db"
	"github.com/riftline/evmsync/internal/logger"
)

//go:embed 001_cache_schema.sql
var mig001 string

//go:embed 002_chain_call_cache.sql
var mig002 string

func migrations() []db.Migration {
	return []db.Migration{
		{ID: "001_cache_schema.sql", SQL: mig001},
		{ID: "002_chain_call_cache.sql", SQL: mig002},
	}
}

// RunMigrations applies the Cache Store's schema to the database at dbPath.
func RunMigrations(dbPath string) error {
	return db.RunMigrations(dbPath, migrations())
}

// RunMigrationsDB applies the Cache Store's schema to an already-open DB handle.
func RunMigrationsDB(log *logger.Logger, sqlDB *sql.DB) error {
	return db.RunMigrationsDB(log, sqlDB, migrations())
}
