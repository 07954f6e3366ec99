package db

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/bitswalk/molior/src/common/paths"
	"github.com/bitswalk/molior/src/moliord/db/migrations"
	_ "github.com/mattn/go-sqlite3"
)

// Database wraps the sqlite3 connection used by moliord's repositories.
//
// Unlike a short-lived snapshot service, the orchestrator's startup
// reconciler depends on state surviving process death, so the connection is
// a plain file-backed database rather than an in-memory-plus-persist-on-exit
// scheme: a crash must leave committed rows on disk, not just in a process
// that no longer exists.
type Database struct {
	db *sql.DB
	mu sync.RWMutex
}

// Config holds the database configuration.
type Config struct {
	// Path is the sqlite3 file path, e.g. /var/lib/molior/molior.db.
	Path string
}

// DefaultConfig returns a default database configuration.
func DefaultConfig() Config {
	return Config{Path: "/var/lib/molior/molior.db"}
}

// New opens the database at cfg.Path, creating it and running all pending
// migrations if necessary.
func New(cfg Config) (*Database, error) {
	path := paths.Expand(cfg.Path)
	if err := paths.EnsureDir(path); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	sqlDB, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// sqlite3 only supports one writer at a time; a single connection avoids
	// SQLITE_BUSY under the Worker's per-iteration session model.
	sqlDB.SetMaxOpenConns(1)

	if _, err := sqlDB.Exec("PRAGMA foreign_keys = ON"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	database := &Database{db: sqlDB}

	runner := migrations.NewRunner(sqlDB)
	if err := runner.Run(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return database, nil
}

// DB returns the underlying *sql.DB for repositories to issue queries
// against.
func (d *Database) DB() *sql.DB {
	return d.db
}

// Close closes the underlying connection.
func (d *Database) Close() error {
	return d.db.Close()
}
