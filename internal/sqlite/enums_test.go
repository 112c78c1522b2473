// Tests for enum tables and value introspection.
package sqlite

import (
	"errors"
	"reflect"
	"testing"

	"github.com/mesh-intelligence/reshape/pkg/types"
)

func TestCreateEnumTable(t *testing.T) {
	s := newTestStore(t)

	if err := s.CreateEnumTable("enum_status", []string{"Pending", "Active", "Done"}); err != nil {
		t.Fatalf("CreateEnumTable failed: %v", err)
	}

	values, err := s.GetEnumValues("enum_status")
	if err != nil {
		t.Fatalf("GetEnumValues failed: %v", err)
	}
	want := []string{"Pending", "Active", "Done"}
	if !reflect.DeepEqual(values, want) {
		t.Errorf("expected %v, got %v", want, values)
	}
}

func TestCreateEnumTable_Idempotent(t *testing.T) {
	s := newTestStore(t)

	if err := s.CreateEnumTable("enum_status", []string{"Pending", "Done"}); err != nil {
		t.Fatalf("CreateEnumTable failed: %v", err)
	}
	// Overlapping values merge; duplicates are ignored.
	if err := s.CreateEnumTable("enum_status", []string{"Done", "Failed"}); err != nil {
		t.Fatalf("second CreateEnumTable failed: %v", err)
	}

	values, err := s.GetEnumValues("enum_status")
	if err != nil {
		t.Fatalf("GetEnumValues failed: %v", err)
	}
	want := []string{"Pending", "Done", "Failed"}
	if !reflect.DeepEqual(values, want) {
		t.Errorf("expected %v, got %v", want, values)
	}
}

func TestGetEnumValues_MissingTable(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetEnumValues("enum_nope")
	if !errors.Is(err, types.ErrSchema) {
		t.Errorf("expected ErrSchema for missing enum table, got %v", err)
	}
}

func TestListEnumTables(t *testing.T) {
	s := newTestStore(t)

	if err := s.CreateEnumTable("enum_status", []string{"A"}); err != nil {
		t.Fatalf("CreateEnumTable failed: %v", err)
	}
	if err := s.CreateEnumTable("enum_kind", []string{"B"}); err != nil {
		t.Fatalf("CreateEnumTable failed: %v", err)
	}
	if err := s.CreateTable("tasks", taskFields()); err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}

	names, err := s.ListEnumTables()
	if err != nil {
		t.Fatalf("ListEnumTables failed: %v", err)
	}
	want := []string{"enum_kind", "enum_status"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("expected %v, got %v", want, names)
	}
}

func TestCreateTable_EnumField(t *testing.T) {
	s := newTestStore(t)

	fields := []types.Field{
		{Name: "id", Type: types.FieldInteger, PrimaryKey: true},
		{Name: "status", Type: types.FieldText,
			Enum: &types.EnumSpec{Values: []string{"Pending", "Done"}}},
	}
	if err := s.CreateTable("tasks", fields); err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}

	// The enum table is derived from the field name.
	values, err := s.GetEnumValues("enum_status")
	if err != nil {
		t.Fatalf("GetEnumValues failed: %v", err)
	}
	if len(values) != 2 {
		t.Errorf("expected 2 enum values, got %v", values)
	}

	// The binding is introspectable.
	field, err := s.GetField("tasks", "status")
	if err != nil {
		t.Fatalf("GetField failed: %v", err)
	}
	if field.Enum == nil || field.Enum.Table != "enum_status" {
		t.Errorf("expected enum binding to enum_status, got %+v", field.Enum)
	}
	if field.ForeignKey == nil || field.ForeignKey.Table != "enum_status" {
		t.Errorf("expected foreign key into enum_status, got %+v", field.ForeignKey)
	}

	// The engine enforces membership through the foreign key.
	if _, err := s.db.Exec("INSERT INTO tasks (status) VALUES ('Pending')"); err != nil {
		t.Fatalf("inserting valid enum value: %v", err)
	}
	_, err = s.InsertRecord("tasks", types.Row{"status": "Bogus"}, false)
	if !errors.Is(err, types.ErrConstraint) {
		t.Errorf("expected ErrConstraint for value outside the enum, got %v", err)
	}
}

func TestAddField_EnumField(t *testing.T) {
	s := newTestStore(t)

	if err := s.CreateTable("tasks", taskFields()); err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}
	seedTasks(t, s, 2)

	field := types.Field{
		Name: "status",
		Type: types.FieldText,
		Enum: &types.EnumSpec{Values: []string{"Pending", "Done"}, Description: "workflow state"},
	}
	if err := s.AddField("tasks", field); err != nil {
		t.Fatalf("AddField failed: %v", err)
	}

	enumTable, err := s.GetEnumTableName("tasks", "status")
	if err != nil {
		t.Fatalf("GetEnumTableName failed: %v", err)
	}
	if enumTable != "enum_status" {
		t.Errorf("expected enum_status, got %q", enumTable)
	}
	if n := countRows(t, s, "tasks"); n != 2 {
		t.Errorf("expected 2 rows after rebuild, got %d", n)
	}
}

func TestGetPossibleValues(t *testing.T) {
	s := newTestStore(t)

	if err := s.CreateTable("tasks", taskFields()); err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}
	for _, title := range []string{"beta", "alpha", "beta"} {
		if _, err := s.db.Exec("INSERT INTO tasks (title) VALUES (?)", title); err != nil {
			t.Fatalf("seeding tasks: %v", err)
		}
	}

	// Distinct and ascending.
	values, err := s.GetPossibleValues("tasks", "title")
	if err != nil {
		t.Fatalf("GetPossibleValues failed: %v", err)
	}
	want := []any{"alpha", "beta"}
	if !reflect.DeepEqual(values, want) {
		t.Errorf("expected %v, got %v", want, values)
	}

	// Empty display field falls back to the primary key.
	keys, err := s.GetPossibleValues("tasks", "")
	if err != nil {
		t.Fatalf("GetPossibleValues failed: %v", err)
	}
	if len(keys) != 3 || keys[0] != int64(1) {
		t.Errorf("expected primary keys [1 2 3], got %v", keys)
	}

	// An unknown field is a validation error, not a SQL error.
	_, err = s.GetPossibleValues("tasks", "nope")
	if !errors.Is(err, types.ErrValidation) {
		t.Errorf("expected ErrValidation for unknown field, got %v", err)
	}
}
