// Integration tests for enum-backed fields: creation, idempotent seeding,
// engine-level membership enforcement, and catalog introspection.
package integration

import (
	"testing"

	"github.com/mesh-intelligence/reshape/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnum_FieldRoundTrip(t *testing.T) {
	s, _ := setupStore(t)

	fields := append(taskSchema(), types.Field{
		Name: "status",
		Type: types.FieldText,
		Enum: &types.EnumSpec{Values: []string{"Pending", "Active", "Done"}},
	})
	mustCreateTable(t, s, "tasks", fields)

	// The enum table exists under the derived name and keeps insertion order.
	values, err := s.GetEnumValues("enum_status")
	require.NoError(t, err)
	assert.Equal(t, []string{"Pending", "Active", "Done"}, values)

	// Valid values insert; values outside the enum are constraint violations.
	mustInsert(t, s, "tasks", types.Row{"title": "ok", "status": "Active"})
	_, err = s.InsertRecord("tasks", types.Row{"title": "bad", "status": "Unknown"}, true)
	assert.ErrorIs(t, err, types.ErrConstraint)

	rows := queryAll(t, s, "tasks", false)
	require.Len(t, rows, 1)
	assert.Equal(t, "Active", rows[0]["status"])
}

func TestEnum_SeedingIsIdempotent(t *testing.T) {
	s, _ := setupStore(t)

	require.NoError(t, s.CreateEnumTable("enum_status", []string{"Pending", "Done"}))
	require.NoError(t, s.CreateEnumTable("enum_status", []string{"Done", "Failed"}))

	values, err := s.GetEnumValues("enum_status")
	require.NoError(t, err)
	assert.Equal(t, []string{"Pending", "Done", "Failed"}, values)
}

func TestEnum_AddedFieldBindsInCatalog(t *testing.T) {
	s, _ := setupStore(t)
	mustCreateTable(t, s, "tasks", taskSchema())
	mustInsert(t, s, "tasks", types.Row{"title": "pre-existing"})

	require.NoError(t, s.AddField("tasks", types.Field{
		Name: "status",
		Type: types.FieldText,
		Enum: &types.EnumSpec{Values: []string{"Pending", "Done"}, Description: "workflow state"},
	}))

	enumTable, err := s.GetEnumTableName("tasks", "status")
	require.NoError(t, err)
	assert.Equal(t, "enum_status", enumTable)

	field, err := s.GetField("tasks", "status")
	require.NoError(t, err)
	require.NotNil(t, field.Enum)
	assert.Equal(t, "enum_status", field.Enum.Table)

	// Pre-existing rows survived the rebuild with a NULL status.
	rows := queryAll(t, s, "tasks", false)
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0]["status"])

	enums, err := s.ListEnumTables()
	require.NoError(t, err)
	assert.Equal(t, []string{"enum_status"}, enums)
}

func TestEnum_DeleteFieldClearsBinding(t *testing.T) {
	s, _ := setupStore(t)

	fields := append(taskSchema(), types.Field{
		Name: "status",
		Type: types.FieldText,
		Enum: &types.EnumSpec{Values: []string{"Pending"}},
	})
	mustCreateTable(t, s, "tasks", fields)

	require.NoError(t, s.DeleteField("tasks", "status"))

	enumTable, err := s.GetEnumTableName("tasks", "status")
	require.NoError(t, err)
	assert.Empty(t, enumTable, "binding must not outlive the field")

	// The enum table itself is never dropped automatically.
	values, err := s.GetEnumValues("enum_status")
	require.NoError(t, err)
	assert.Equal(t, []string{"Pending"}, values)
}

func TestEnum_PossibleValues(t *testing.T) {
	s, _ := setupStore(t)
	mustCreateTable(t, s, "tags", tagSchema())
	for _, name := range []string{"red", "blue", "green"} {
		mustInsert(t, s, "tags", types.Row{"name": name})
	}

	values, err := s.GetPossibleValues("tags", "name")
	require.NoError(t, err)
	assert.Equal(t, []any{"blue", "green", "red"}, values)

	_, err = s.GetPossibleValues("tags", "shade")
	assert.ErrorIs(t, err, types.ErrValidation)
}
