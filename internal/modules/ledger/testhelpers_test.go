package ledger

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// setupTestDB creates an isolated ledger database with the full schema
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	require.NoError(t, InitSchema(db))

	t.Cleanup(func() { db.Close() })
	return db
}

// newTestService boots a full service over a fresh test database
func newTestService(t *testing.T) (*Service, *Repository) {
	t.Helper()

	db := setupTestDB(t)
	repo := NewRepository(db, zerolog.Nop())
	svc, err := NewService(repo, zerolog.Nop())
	require.NoError(t, err)
	return svc, repo
}
