package helpers

import (
	"database/sql"
	"path"
	"testing"

	"github.com/riftline/evmsync/internal/db"
	cachemigrations "github.com/riftline/evmsync/internal/cachestore/migrations"
	dispatchermigrations "github.com/riftline/evmsync/internal/dispatcher/migrations"
	"github.com/riftline/evmsync/internal/logger"
	"github.com/riftline/evmsync/pkg/config"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

// NewTestDB creates a new temporary SQLite database with both the Cache
// Store's and the Dispatcher's schema applied, the way the Orchestrator
// opens one shared file for both.
func NewTestDB(t *testing.T, dbName string) *sql.DB {
	t.Helper()

	tmpDBPath := path.Join(t.TempDir(), dbName)

	require.NoError(t, cachemigrations.RunMigrations(tmpDBPath))
	require.NoError(t, dispatchermigrations.RunMigrations(tmpDBPath))

	dbConfig := config.DatabaseConfig{Filename: tmpDBPath}
	dbConfig.ApplyDefaults()

	database, err := db.NewSQLiteDBFromConfig(dbConfig)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	return database
}

// NewInMemoryDB opens a bare in-memory SQLite handle with no schema applied,
// for packages that create their own tables inline.
func NewInMemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return database
}

// TestLogger returns a development-mode logger for use in test assertions.
func TestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.NewLogger("info", true)
	require.NoError(t, err)
	return log
}
