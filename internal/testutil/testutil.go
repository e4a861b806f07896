// Package testutil opens throwaway databases for package tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/migrations"
	"github.com/Ramsey-B/fern/pkg/database"
)

// Logger discards everything.
func Logger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

// NewSQLiteDB opens a migrated SQLite database in a temp dir. It is closed
// when the test ends.
func NewSQLiteDB(t *testing.T) database.DB {
	t.Helper()

	logger := Logger()
	db, err := database.Connect(context.Background(), database.ConnectionConfig{
		Dialect:       database.DialectSQLite,
		SQLitePath:    filepath.Join(t.TempDir(), "fern.db"),
		TxMaxAttempts: 3,
	}, logger)
	require.NoError(t, err)

	MigrateDB(t, db)

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

// MigrateDB applies every embedded migration for the database's dialect.
func MigrateDB(t *testing.T, db database.DB) {
	t.Helper()

	migrator := database.NewMigrationService(Logger(), &database.MigrationConfig{
		Migrations: migrations.FS,
	})
	require.NoError(t, migrator.Migrate(db))
}
