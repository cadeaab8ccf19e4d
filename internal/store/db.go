// Package store implements the local cache: a durable, transactional
// SQLite store holding cached entities and the offline mutation queue.
package store

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"herdsync/internal/errors"
)

// Table names, used both in SQL and as change-notification keys.
const (
	TableAnimals   = "animals"
	TableEvents    = "events"
	TableTasks     = "tasks"
	TableDocuments = "documents"
	TableSyncQueue = "sync_queue"
)

// Store wraps the SQLite database. All cached rows and the mutation
// queue live here; the repository is the only writer.
type Store struct {
	db *sql.DB

	mu       sync.RWMutex
	listener func(tables []string)
}

// Open opens (creating if needed) the herdsync database under dataDir.
// The database runs in WAL mode with foreign keys enabled and a single
// writer connection.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, errors.Wrap(errors.KindStorage, "create data directory", err)
	}

	dbPath := filepath.Join(dataDir, "herdsync.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, "open database", err)
	}

	// SQLite supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, errors.Wrap(errors.KindStorage, "enable WAL mode", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, errors.Wrap(errors.KindStorage, "enable foreign keys", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for migrations and tests.
func (s *Store) DB() *sql.DB {
	return s.db
}

// SetChangeListener registers the callback invoked with the list of
// tables touched by each committed write transaction. At most one
// listener is supported; the live query broker fans out from there.
func (s *Store) SetChangeListener(fn func(tables []string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = fn
}

func (s *Store) notify(tables []string) {
	s.mu.RLock()
	fn := s.listener
	s.mu.RUnlock()
	if fn != nil && len(tables) > 0 {
		fn(tables)
	}
}
