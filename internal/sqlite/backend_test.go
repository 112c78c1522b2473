// Tests for the store lifecycle and schema listing.
package sqlite

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mesh-intelligence/reshape/pkg/types"
)

// newTestStore returns a store attached to a fresh temporary database.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	s := NewStore()
	config := types.Config{
		Backend: types.BackendSQLite,
		DataDir: t.TempDir(),
	}
	if err := s.Attach(config); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	t.Cleanup(func() { s.Detach() })
	return s
}

func TestStore_Attach(t *testing.T) {
	tmpDir := t.TempDir()

	s := NewStore()
	config := types.Config{
		Backend: types.BackendSQLite,
		DataDir: tmpDir,
	}

	err := s.Attach(config)
	if err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	defer s.Detach()

	// Verify database file created
	dbPath := filepath.Join(tmpDir, "reshape.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("reshape.db not created")
	}

	// Verify double attach fails
	err = s.Attach(config)
	if err != types.ErrAlreadyAttached {
		t.Errorf("expected ErrAlreadyAttached, got %v", err)
	}
}

func TestStore_AttachInvalidConfig(t *testing.T) {
	s := NewStore()

	err := s.Attach(types.Config{Backend: "", DataDir: t.TempDir()})
	if err == nil {
		t.Fatal("expected error for empty backend")
	}

	err = s.Attach(types.Config{Backend: "postgres", DataDir: t.TempDir()})
	if err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestStore_Detach(t *testing.T) {
	s := NewStore()
	config := types.Config{
		Backend: types.BackendSQLite,
		DataDir: t.TempDir(),
	}
	if err := s.Attach(config); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}

	if err := s.Detach(); err != nil {
		t.Fatalf("Detach failed: %v", err)
	}

	// Verify idempotent
	if err := s.Detach(); err != nil {
		t.Errorf("second Detach should not error, got %v", err)
	}

	// Verify operations fail after detach
	_, err := s.GetTableNames()
	if !errors.Is(err, types.ErrStoreDetached) {
		t.Errorf("expected ErrStoreDetached, got %v", err)
	}
	err = s.CreateTable("tasks", []types.Field{{Name: "id", Type: types.FieldInteger, PrimaryKey: true}})
	if !errors.Is(err, types.ErrStoreDetached) {
		t.Errorf("expected ErrStoreDetached, got %v", err)
	}
}

func TestStore_GetTableNames(t *testing.T) {
	s := newTestStore(t)

	names, err := s.GetTableNames()
	if err != nil {
		t.Fatalf("GetTableNames failed: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("expected empty database, got tables %v", names)
	}

	fields := []types.Field{
		{Name: "id", Type: types.FieldInteger, PrimaryKey: true},
		{Name: "title", Type: types.FieldText},
	}
	if err := s.CreateTable("tasks", fields); err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}
	if err := s.CreateTable("tags", fields); err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}

	names, err = s.GetTableNames()
	if err != nil {
		t.Fatalf("GetTableNames failed: %v", err)
	}
	if len(names) != 2 || names[0] != "tags" || names[1] != "tasks" {
		t.Errorf("expected [tags tasks], got %v", names)
	}
}

func TestStore_GetViewNames(t *testing.T) {
	s := newTestStore(t)

	fields := []types.Field{
		{Name: "id", Type: types.FieldInteger, PrimaryKey: true},
		{Name: "done", Type: types.FieldInteger},
	}
	if err := s.CreateTable("tasks", fields); err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}
	if _, err := s.db.Exec("CREATE VIEW open_tasks AS SELECT id FROM tasks WHERE done = 0"); err != nil {
		t.Fatalf("creating view: %v", err)
	}

	views, err := s.GetViewNames()
	if err != nil {
		t.Fatalf("GetViewNames failed: %v", err)
	}
	if len(views) != 1 || views[0] != "open_tasks" {
		t.Errorf("expected [open_tasks], got %v", views)
	}

	// Views must not leak into the table listing.
	tables, err := s.GetTableNames()
	if err != nil {
		t.Fatalf("GetTableNames failed: %v", err)
	}
	if len(tables) != 1 || tables[0] != "tasks" {
		t.Errorf("expected [tasks], got %v", tables)
	}
}

func TestStore_GetDatabaseSize(t *testing.T) {
	s := newTestStore(t)

	size, err := s.GetDatabaseSize()
	if err != nil {
		t.Fatalf("GetDatabaseSize failed: %v", err)
	}
	if size < 0 {
		t.Errorf("expected non-negative size, got %d", size)
	}

	fields := []types.Field{
		{Name: "id", Type: types.FieldInteger, PrimaryKey: true},
		{Name: "payload", Type: types.FieldText},
	}
	if err := s.CreateTable("blobs", fields); err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}

	grown, err := s.GetDatabaseSize()
	if err != nil {
		t.Fatalf("GetDatabaseSize failed: %v", err)
	}
	if grown < size {
		t.Errorf("expected size to grow after DDL, got %d -> %d", size, grown)
	}
}
