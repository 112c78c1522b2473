// Package integration provides shared helpers for end-to-end tests that
// drive the store through its public interface.
package integration

import (
	"testing"

	"github.com/mesh-intelligence/reshape/pkg/sqlite"
	"github.com/mesh-intelligence/reshape/pkg/types"
)

// setupStore attaches a store to an isolated temp directory. Each test case
// gets its own database for isolation.
func setupStore(t *testing.T) (types.Store, string) {
	t.Helper()
	dir := t.TempDir()
	s := sqlite.NewStore()
	if err := s.Attach(types.Config{Backend: types.BackendSQLite, DataDir: dir}); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	t.Cleanup(func() { s.Detach() })
	return s, dir
}

// mustCreateTable creates a table or fails the test.
func mustCreateTable(t *testing.T, s types.Store, name string, fields []types.Field) {
	t.Helper()
	if err := s.CreateTable(name, fields); err != nil {
		t.Fatalf("CreateTable(%q): %v", name, err)
	}
}

// mustInsert inserts a record with relation handling and returns its key.
func mustInsert(t *testing.T, s types.Store, table string, data types.Row) int64 {
	t.Helper()
	key, err := s.InsertRecord(table, data, true)
	if err != nil {
		t.Fatalf("InsertRecord into %q: %v", table, err)
	}
	return key
}

// queryAll drains a dictionary-mode query over the whole table.
func queryAll(t *testing.T, s types.Store, table string, handleM2M bool) []types.Row {
	t.Helper()
	cursor, err := s.QueryTableData(table, types.QueryOptions{AsDict: true, HandleM2M: handleM2M})
	if err != nil {
		t.Fatalf("QueryTableData(%q): %v", table, err)
	}
	defer cursor.Close()

	var rows []types.Row
	for cursor.Next() {
		rows = append(rows, cursor.Row())
	}
	if err := cursor.Err(); err != nil {
		t.Fatalf("cursor over %q: %v", table, err)
	}
	return rows
}

// taskSchema is the baseline table used across scenarios.
func taskSchema() []types.Field {
	return []types.Field{
		{Name: "id", Type: types.FieldInteger, PrimaryKey: true},
		{Name: "title", Type: types.FieldText, NotNull: true},
		{Name: "priority", Type: types.FieldInteger, Default: 0},
	}
}

// tagSchema is the related table used in link scenarios.
func tagSchema() []types.Field {
	return []types.Field{
		{Name: "id", Type: types.FieldInteger, PrimaryKey: true},
		{Name: "name", Type: types.FieldText, NotNull: true, Unique: true},
	}
}
