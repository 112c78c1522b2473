package sqlite

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/mesh-intelligence/reshape/internal/ident"
	"github.com/mesh-intelligence/reshape/pkg/types"
)

// Schema catalog: the persistent store for the three kinds of metadata the
// physical schema cannot express: display-field mappings, enum-field
// mappings, and many-to-many relation descriptors. The catalog is the single
// source of truth for anything the engine cannot model; no row in it may
// reference a table or field that no longer exists.

// AddDisplayField records that (table, field) should be shown through
// targetField on the related table, with an optional format string.
func (s *Store) AddDisplayField(table, field, targetField, format string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureAttached(); err != nil {
		return err
	}
	if err := ident.ValidateAll(table, field, targetField); err != nil {
		return err
	}
	return s.addDisplayField(table, field, targetField, format)
}

// addDisplayField is the lock-free variant used by relation creation.
func (s *Store) addDisplayField(table, field, targetField, format string) error {
	if err := s.ensureMetaTable(metaDisplayFieldTable); err != nil {
		return err
	}
	_, err := s.db.Exec(`
		INSERT INTO _meta_display_field (table_name, field_name, display_foreign_field_name, display_format)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(table_name, field_name) DO UPDATE SET
			display_foreign_field_name = excluded.display_foreign_field_name,
			display_format = excluded.display_format`,
		table, field, targetField, nullableString(format))
	if err != nil {
		return wrapExecErr("upserting display field", err)
	}
	return nil
}

// GetDisplayField returns the display mapping for (table, field), or nil
// when none is recorded. A catalog table that does not exist yet reads as
// empty, not as an error.
func (s *Store) GetDisplayField(table, field string) (*types.DisplayField, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureAttached(); err != nil {
		return nil, err
	}
	return s.getDisplayField(table, field)
}

func (s *Store) getDisplayField(table, field string) (*types.DisplayField, error) {
	exists, err := s.tableExists(metaDisplayFieldTable)
	if err != nil || !exists {
		return nil, err
	}
	var target string
	var format sql.NullString
	err = s.db.QueryRow(`
		SELECT display_foreign_field_name, display_format FROM _meta_display_field
		WHERE table_name = ? AND field_name = ?`, table, field).Scan(&target, &format)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading display field: %w", err)
	}
	df := &types.DisplayField{Table: table, Field: field, TargetField: target}
	if format.Valid {
		df.Format = format.String
	}
	return df, nil
}

// RemoveDisplayField deletes the display mapping for (table, field).
// Removing an absent mapping is a no-op.
func (s *Store) RemoveDisplayField(table, field string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureAttached(); err != nil {
		return err
	}
	return s.removeDisplayField(table, field)
}

func (s *Store) removeDisplayField(table, field string) error {
	exists, err := s.tableExists(metaDisplayFieldTable)
	if err != nil || !exists {
		return err
	}
	_, err = s.db.Exec(
		"DELETE FROM _meta_display_field WHERE table_name = ? AND field_name = ?", table, field)
	if err != nil {
		return fmt.Errorf("removing display field: %w", err)
	}
	return nil
}

// AddEnumMetadata records that (table, field) is backed by enumTable.
func (s *Store) AddEnumMetadata(table, field, enumTable, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureAttached(); err != nil {
		return err
	}
	if err := ident.ValidateAll(table, field, enumTable); err != nil {
		return err
	}
	return s.addEnumMetadata(table, field, enumTable, description)
}

func (s *Store) addEnumMetadata(table, field, enumTable, description string) error {
	if err := s.ensureMetaTable(metaEnumFieldTable); err != nil {
		return err
	}
	_, err := s.db.Exec(`
		INSERT INTO _meta_enum_field (table_name, field_name, enum_table_name, description)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(table_name, field_name) DO UPDATE SET
			enum_table_name = excluded.enum_table_name,
			description = excluded.description`,
		table, field, enumTable, nullableString(description))
	if err != nil {
		return wrapExecErr("upserting enum metadata", err)
	}
	return nil
}

// GetEnumTableName returns the enum table backing (table, field), or ""
// when the field is not enum-backed.
func (s *Store) GetEnumTableName(table, field string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureAttached(); err != nil {
		return "", err
	}
	return s.getEnumTableName(table, field)
}

func (s *Store) getEnumTableName(table, field string) (string, error) {
	exists, err := s.tableExists(metaEnumFieldTable)
	if err != nil || !exists {
		return "", err
	}
	var name string
	err = s.db.QueryRow(`
		SELECT enum_table_name FROM _meta_enum_field
		WHERE table_name = ? AND field_name = ?`, table, field).Scan(&name)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading enum metadata: %w", err)
	}
	return name, nil
}

// ListEnumTables returns every table following the enum naming convention.
func (s *Store) ListEnumTables() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureAttached(); err != nil {
		return nil, err
	}
	tables, err := s.listSchemaObjects("table")
	if err != nil {
		return nil, err
	}
	var enums []string
	for _, name := range tables {
		if strings.HasPrefix(name, enumTablePrefix) {
			enums = append(enums, name)
		}
	}
	return enums, nil
}

// registerRelation records a many-to-many relation for one side.
// The caller must hold s.mu.
func (s *Store) registerRelation(fromTable, trackField, junctionTable string) error {
	if err := s.ensureMetaTable(metaManyToManyTable); err != nil {
		return err
	}
	_, err := s.db.Exec(`
		INSERT INTO _meta_many_to_many (from_table, track_field_name, junction_table)
		VALUES (?, ?, ?)
		ON CONFLICT(from_table, track_field_name) DO UPDATE SET
			junction_table = excluded.junction_table`,
		fromTable, trackField, junctionTable)
	if err != nil {
		return wrapExecErr("registering relation", err)
	}
	return nil
}

// unregisterRelation removes a relation descriptor. The caller must hold s.mu.
func (s *Store) unregisterRelation(fromTable, trackField string) error {
	exists, err := s.tableExists(metaManyToManyTable)
	if err != nil || !exists {
		return err
	}
	_, err = s.db.Exec(
		"DELETE FROM _meta_many_to_many WHERE from_table = ? AND track_field_name = ?",
		fromTable, trackField)
	if err != nil {
		return fmt.Errorf("unregistering relation: %w", err)
	}
	return nil
}

// GetRelations returns the track-field to junction-table mapping for a table.
func (s *Store) GetRelations(fromTable string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureAttached(); err != nil {
		return nil, err
	}
	return s.getRelations(fromTable)
}

func (s *Store) getRelations(fromTable string) (map[string]string, error) {
	relations := make(map[string]string)
	exists, err := s.tableExists(metaManyToManyTable)
	if err != nil || !exists {
		return relations, err
	}
	rows, err := s.db.Query(
		"SELECT track_field_name, junction_table FROM _meta_many_to_many WHERE from_table = ?",
		fromTable)
	if err != nil {
		return nil, fmt.Errorf("reading relations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var track, junction string
		if err := rows.Scan(&track, &junction); err != nil {
			return nil, fmt.Errorf("scanning relation: %w", err)
		}
		relations[track] = junction
	}
	return relations, rows.Err()
}

// GetManyToManyFields returns the track-field names declared for a table,
// sorted for deterministic output.
func (s *Store) GetManyToManyFields(table string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureAttached(); err != nil {
		return nil, err
	}
	return s.getManyToManyFields(table)
}

func (s *Store) getManyToManyFields(table string) ([]string, error) {
	relations, err := s.getRelations(table)
	if err != nil {
		return nil, err
	}
	fields := make([]string, 0, len(relations))
	for track := range relations {
		fields = append(fields, track)
	}
	sort.Strings(fields)
	return fields, nil
}

// relationJunction resolves a track field to its junction table, reporting
// an unregistered relation as a schema error rather than a nil dereference.
func (s *Store) relationJunction(fromTable, trackField string) (string, error) {
	relations, err := s.getRelations(fromTable)
	if err != nil {
		return "", err
	}
	junction, ok := relations[trackField]
	if !ok {
		return "", fmt.Errorf("%w: no relation %s.%s", types.ErrSchema, fromTable, trackField)
	}
	return junction, nil
}

// nullableString maps "" to NULL for optional text columns.
func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
