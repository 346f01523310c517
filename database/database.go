// Package database provides the SQLite-backed record store for the
// application's persisted state.
//
// The store exposes a deliberately narrow contract: get and set an opaque
// string value by key. Higher layers decide what lives under each key (the
// game catalog is one JSON blob under a fixed key) and how to decode it.
//
// The database uses SQLite with WAL (Write-Ahead Logging) mode and applies
// schema migrations on open.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// DB wraps the SQL database with record-store helper methods.
type DB struct {
	db   *sql.DB
	path string // Path to the database file (for diagnostic logging)
}

// Config holds database configuration.
type Config struct {
	// Path to the SQLite database file
	Path string

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int

	// ConnMaxLifetime is the maximum lifetime of a connection
	ConnMaxLifetime time.Duration
}

// DefaultConfig returns a default database configuration.
func DefaultConfig() Config {
	return Config{
		Path:            "brightpath.db",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 1 * time.Hour,
	}
}

// New creates a new database connection and initializes the schema.
//
// It configures SQLite with WAL mode, a busy timeout, and an in-memory temp
// store, then applies any pending schema migrations.
func New(cfg Config) (*DB, error) {
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	// Set SQLite pragmas for concurrency and durability
	pragmas := []string{
		"PRAGMA journal_mode = WAL",   // Write-Ahead Logging for better concurrency
		"PRAGMA foreign_keys = ON",    // Enable foreign key constraints
		"PRAGMA synchronous = NORMAL", // Balance durability and performance
		"PRAGMA busy_timeout = 5000",  // 5 second timeout for locks
		"PRAGMA temp_store = MEMORY",  // Use memory for temp tables
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	d := &DB{
		db:   db,
		path: cfg.Path,
	}

	if err := d.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return d, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping verifies the database connection is alive.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Path returns the database file path.
func (d *DB) Path() string {
	return d.path
}

// Get returns the value stored under key. The second return value reports
// whether the key was present.
func (d *DB) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := d.db.QueryRowContext(ctx, `SELECT value FROM records WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read record %q: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key, overwriting any previous value wholesale.
func (d *DB) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO records (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`
	if _, err := d.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to write record %q: %w", key, err)
	}
	return nil
}

// Delete removes the value stored under key. Missing keys are not an error.
func (d *DB) Delete(ctx context.Context, key string) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM records WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete record %q: %w", key, err)
	}
	return nil
}

// initSchema creates the database schema if it doesn't exist.
func (d *DB) initSchema() error {
	// Create schema_migrations table first
	if _, err := d.db.Exec(schemaMigrationsTable); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	migrations := []migration{
		{version: 1, description: "Initial schema with records table", sql: initialSchema},
	}

	for _, m := range migrations {
		if err := d.runMigration(m); err != nil {
			return fmt.Errorf("migration %d failed: %w", m.version, err)
		}
	}

	return nil
}

type migration struct {
	version     int
	description string
	sql         string
}

func (d *DB) runMigration(m migration) error {
	// Check if migration already applied
	var exists bool
	err := d.db.QueryRow("SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = ?)", m.version).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check migration status: %w", err)
	}

	if exists {
		return nil // Migration already applied
	}

	// Run migration in a transaction
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(m.sql); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}

	if _, err := tx.Exec("INSERT INTO schema_migrations (version, description) VALUES (?, ?)", m.version, m.description); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}

	return nil
}
