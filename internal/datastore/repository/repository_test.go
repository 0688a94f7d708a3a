package repository

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/proxypulse/proxypulse/internal/datastore"
)

// setupTestDB opens a real SQLite database in a temp directory with the
// full schema migrated. The database is closed when the test finishes.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	manager, err := datastore.NewSQLiteManager(datastore.Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, manager.Initialize())
	t.Cleanup(func() {
		_ = manager.Close()
	})
	return manager.DB()
}
