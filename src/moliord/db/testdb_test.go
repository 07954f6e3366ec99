package db

import (
	"path/filepath"
	"testing"
)

// newTestDB opens a fresh, fully-migrated sqlite3 database backed by a file
// under t.TempDir, exercising the same New() path production uses rather
// than a hand-rolled schema.
func newTestDB(t *testing.T) *Database {
	t.Helper()
	path := filepath.Join(t.TempDir(), "molior.db")
	database, err := New(Config{Path: path})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}
