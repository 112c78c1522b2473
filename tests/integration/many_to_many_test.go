// Integration tests for many-to-many relations: junction creation, virtual
// field introspection, full-replace link updates, hydrated queries, and
// orphan handling on delete.
package integration

import (
	"testing"

	"github.com/mesh-intelligence/reshape/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupLinked creates tasks and tags joined by a junction with tag names as
// the display field.
func setupLinked(t *testing.T) (types.Store, string) {
	t.Helper()
	s, _ := setupStore(t)
	mustCreateTable(t, s, "tasks", taskSchema())
	mustCreateTable(t, s, "tags", tagSchema())
	junction, err := s.CreateJunctionTable("tasks", "tags", types.JunctionOptions{
		DisplayField: "name",
	})
	require.NoError(t, err)
	for _, name := range []string{"red", "green", "blue"} {
		mustInsert(t, s, "tags", types.Row{"name": name})
	}
	return s, junction
}

func TestLink_JunctionAppearsAsVirtualField(t *testing.T) {
	s, junction := setupLinked(t)
	assert.Equal(t, "tags_tasks", junction, "junction name derives from the sorted pair")

	fields, err := s.GetFields("tasks")
	require.NoError(t, err)

	var track *types.Field
	for i := range fields {
		if fields[i].Name == "tags_link" {
			track = &fields[i]
		}
	}
	require.NotNil(t, track, "virtual track field missing from GetFields")
	assert.Equal(t, types.FieldManyToMany, track.Type)
	require.NotNil(t, track.ManyToMany)
	assert.Equal(t, junction, track.ManyToMany.JunctionTable)

	// The virtual field never reaches the physical schema.
	pks, err := s.GetPrimaryKeys("tasks")
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, pks)
}

func TestLink_InsertAndHydrate(t *testing.T) {
	s, _ := setupLinked(t)

	mustInsert(t, s, "tasks", types.Row{"title": "errands", "tags_link": []any{1, 3}})
	mustInsert(t, s, "tasks", types.Row{"title": "untagged"})

	rows := queryAll(t, s, "tasks", true)
	require.Len(t, rows, 2)

	assert.ElementsMatch(t, []any{"red", "blue"}, rows[0]["tags_link"],
		"links hydrate through the display field")
	assert.Equal(t, []any{}, rows[1]["tags_link"],
		"a record without links hydrates to an empty list")
}

func TestLink_UpdateReplacesWholeSet(t *testing.T) {
	s, _ := setupLinked(t)

	key := mustInsert(t, s, "tasks", types.Row{"title": "errands", "tags_link": []any{1, 2}})

	require.NoError(t, s.UpdateRecord("tasks", types.Row{"tags_link": []any{3}}, key, "id", true))

	rows := queryAll(t, s, "tasks", true)
	require.Len(t, rows, 1)
	assert.Equal(t, []any{"blue"}, rows[0]["tags_link"], "the new set replaces the old one")

	// Clearing works the same way.
	require.NoError(t, s.UpdateRecord("tasks", types.Row{"tags_link": []any{}}, key, "id", true))
	rows = queryAll(t, s, "tasks", true)
	assert.Equal(t, []any{}, rows[0]["tags_link"])
}

func TestLink_BothDirections(t *testing.T) {
	s, _ := setupStore(t)
	mustCreateTable(t, s, "tasks", taskSchema())
	mustCreateTable(t, s, "tags", tagSchema())
	_, err := s.CreateJunctionTable("tasks", "tags", types.JunctionOptions{
		TrackViceVersa:      true,
		DisplayField:        "name",
		ReverseDisplayField: "title",
	})
	require.NoError(t, err)

	mustInsert(t, s, "tags", types.Row{"name": "urgent"})
	mustInsert(t, s, "tasks", types.Row{"title": "errands", "tags_link": []any{1}})

	// The same junction row is visible from the tags side.
	data, err := s.GetManyToManyData("tags", "tasks_link", types.RelatedOptions{})
	require.NoError(t, err)
	require.Len(t, data, 1)
	assert.Equal(t, []any{"errands"}, data[0]["tasks_link"])
}

func TestLink_DeleteRecordCleansJunction(t *testing.T) {
	s, junction := setupLinked(t)

	key := mustInsert(t, s, "tasks", types.Row{"title": "doomed", "tags_link": []any{1, 2}})
	keep := mustInsert(t, s, "tasks", types.Row{"title": "kept", "tags_link": []any{2}})

	require.NoError(t, s.DeleteRecord("tasks", key, ""))

	// Only the surviving record's links remain.
	rows := queryAll(t, s, junction, false)
	require.Len(t, rows, 1)
	assert.Equal(t, keep, rows[0]["tasks_id"])

	// Related records are never deleted.
	tags := queryAll(t, s, "tags", false)
	assert.Len(t, tags, 3)
}

func TestLink_DeleteVirtualFieldDropsJunction(t *testing.T) {
	s, junction := setupLinked(t)

	require.NoError(t, s.DeleteField("tasks", "tags_link"))

	names, err := s.GetTableNames()
	require.NoError(t, err)
	assert.NotContains(t, names, junction)

	tracks, err := s.GetManyToManyFields("tasks")
	require.NoError(t, err)
	assert.Empty(t, tracks)

	// Both base tables survive.
	assert.Contains(t, names, "tasks")
	assert.Contains(t, names, "tags")
}

func TestLink_DanglingKeyRejected(t *testing.T) {
	s, _ := setupLinked(t)

	_, err := s.InsertRecord("tasks", types.Row{"title": "bad", "tags_link": []any{99}}, true)
	assert.ErrorIs(t, err, types.ErrConstraint)
}
