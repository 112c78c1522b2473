// Package sqlite implements the reshape storage and metadata core on top of
// SQLite. The engine offers only primitive schema operations (create table,
// drop table, insert, select, copy), so structural edits go through
// reconstruct-and-swap and everything the physical schema cannot express
// lives in three catalog tables owned by this package.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mesh-intelligence/reshape/pkg/types"
)

// databaseFileName is the SQLite file created inside DataDir.
const databaseFileName = "reshape.db"

// Store implements types.Store over a single SQLite database handle.
//
// The handle is pinned to one connection (MaxOpenConns 1) so that
// connection-scoped pragmas such as foreign_keys apply to every statement.
// Mutating operations take the write lock; reads take the read lock.
type Store struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sql.DB
	dbPath   string
}

// NewStore creates a new SQLite store instance.
// The store is not attached; call Attach with a Config to initialize.
func NewStore() *Store {
	return &Store{}
}

// Attach opens (or creates) the database described by config.
// Returns ErrAlreadyAttached if already attached.
func (s *Store) Attach(config types.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.attached {
		return types.ErrAlreadyAttached
	}

	if err := config.Validate(); err != nil {
		return err
	}

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}

	dbPath := filepath.Join(dataDir, databaseFileName)
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return err
	}

	// One connection per handle: pragmas below stay in effect for the
	// lifetime of the store, and DDL sequences never straddle connections.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return fmt.Errorf("enabling foreign keys: %w", err)
	}

	s.db = db
	s.dbPath = dbPath
	s.config = config
	s.attached = true
	return nil
}

// Detach closes the database handle. Idempotent. After Detach, all
// operations return ErrStoreDetached.
func (s *Store) Detach() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.attached {
		return nil // idempotent
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return err
		}
		s.db = nil
	}

	s.attached = false
	return nil
}

// ensureAttached reports the detached state as an error.
// The caller must hold s.mu (read or write lock).
func (s *Store) ensureAttached() error {
	if !s.attached {
		return types.ErrStoreDetached
	}
	return nil
}

// GetTableNames returns the names of all tables, catalog tables included,
// excluding SQLite's own internal tables.
func (s *Store) GetTableNames() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureAttached(); err != nil {
		return nil, err
	}
	return s.listSchemaObjects("table")
}

// GetViewNames returns the names of all views.
func (s *Store) GetViewNames() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureAttached(); err != nil {
		return nil, err
	}
	return s.listSchemaObjects("view")
}

func (s *Store) listSchemaObjects(kind string) ([]string, error) {
	rows, err := s.db.Query(
		"SELECT name FROM sqlite_master WHERE type = ? AND name NOT LIKE 'sqlite_%' ORDER BY name", kind)
	if err != nil {
		return nil, fmt.Errorf("listing %ss: %w", kind, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning %s name: %w", kind, err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// GetDatabaseSize returns the size of the database file in bytes.
func (s *Store) GetDatabaseSize() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureAttached(); err != nil {
		return 0, err
	}
	info, err := os.Stat(s.dbPath)
	if err != nil {
		return 0, fmt.Errorf("stat database file: %w", err)
	}
	return info.Size(), nil
}

// tableExists reports whether a table with the given name exists.
// The caller must hold s.mu.
func (s *Store) tableExists(name string) (bool, error) {
	var one int
	err := s.db.QueryRow(
		"SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking table %s: %w", name, err)
	}
	return true, nil
}

// wrapExecErr classifies engine errors: SQLITE_CONSTRAINT failures surface
// as types.ErrConstraint, everything else is wrapped as-is.
func wrapExecErr(context string, err error) error {
	var serr *sqlite.Error
	if errors.As(err, &serr) && serr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		return fmt.Errorf("%s: %w: %w", context, types.ErrConstraint, err)
	}
	return fmt.Errorf("%s: %w", context, err)
}
