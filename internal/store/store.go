// Package store is the SQLite persistence layer: the embedding cache, build
// history and invocation log. Everything here is supporting state; the skills
// directory remains the source of truth for skill sources, and a deleted
// database only costs re-embedding and history.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"skillforge/internal/logging"
)

// Store wraps a single SQLite database.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// New opens (or creates) the database at path and ensures the schema.
func New(path string) (*Store, error) {
	timer := logging.StartTimer(logging.CategoryStore, "New")
	defer timer.Stop()

	logging.Store("Opening store at %s", path)

	if dir := filepath.Dir(path); dir != "" && path != ":memory:" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}

	s := &Store{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	logging.StoreDebug("Store schema ready")
	return s, nil
}

// initialize creates the required tables.
func (s *Store) initialize() error {
	embeddingTable := `
	CREATE TABLE IF NOT EXISTS embedding_cache (
		model TEXT NOT NULL,
		text_hash TEXT NOT NULL,
		vector BLOB NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (model, text_hash)
	);
	`

	buildTable := `
	CREATE TABLE IF NOT EXISTS build_history (
		id TEXT PRIMARY KEY,
		specification TEXT NOT NULL,
		skill_name TEXT,
		filename TEXT,
		fingerprint TEXT,
		success BOOLEAN NOT NULL,
		error_message TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_builds_skill ON build_history(skill_name);
	CREATE INDEX IF NOT EXISTS idx_builds_created ON build_history(created_at);
	`

	invocationTable := `
	CREATE TABLE IF NOT EXISTS invocations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		trace_id TEXT,
		skill_name TEXT NOT NULL,
		arguments TEXT,
		output TEXT,
		success BOOLEAN NOT NULL,
		error_message TEXT,
		duration_ms INTEGER,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_invocations_skill ON invocations(skill_name);
	CREATE INDEX IF NOT EXISTS idx_invocations_created ON invocations(created_at);
	`

	for _, table := range []string{embeddingTable, buildTable, invocationTable} {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	logging.Store("Closing store")
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

// Stats returns per-table row counts.
func (s *Store) Stats() (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]int64)
	for _, table := range []string{"embedding_cache", "build_history", "invocations"} {
		var count int64
		if err := s.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count); err != nil {
			continue
		}
		stats[table] = count
	}
	return stats, nil
}
