package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/reshape/internal/ident"
	"github.com/mesh-intelligence/reshape/pkg/types"
)

// Table evolution. The engine cannot add or drop a single column, nor
// retrofit a constraint, so every structural edit rebuilds the table:
// snapshot the current fields, compute the new field list, create a
// temporary table, copy rows over an explicit column list, drop the
// original, rename. The whole sequence runs in one transaction with foreign
// keys disabled around it; any failure rolls back to the pre-operation
// state and re-enables enforcement.

// fkActions is the allow-list for ON UPDATE / ON DELETE clauses; referential
// actions are spliced into DDL as structure, not bound as values.
var fkActions = map[string]bool{
	"CASCADE":     true,
	"RESTRICT":    true,
	"SET NULL":    true,
	"SET DEFAULT": true,
	"NO ACTION":   true,
}

// CreateTable creates a table with the given fields. Idempotent under
// IF NOT EXISTS. Enum-backed fields get their enum table, foreign key, and
// catalog row wired in the same call.
func (s *Store) CreateTable(name string, fields []types.Field) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureAttached(); err != nil {
		return err
	}
	if err := ident.Validate(name); err != nil {
		return err
	}
	if len(fields) == 0 {
		return fmt.Errorf("%w: table %s needs at least one field", types.ErrValidation, name)
	}

	prepared := make([]types.Field, len(fields))
	copy(prepared, fields)
	for i := range prepared {
		if prepared[i].IsManyToMany() {
			return fmt.Errorf("%w: field %s is many-to-many; use CreateJunctionTable",
				types.ErrValidation, prepared[i].Name)
		}
		if err := s.prepareEnumField(&prepared[i]); err != nil {
			return err
		}
	}

	ddl, err := buildCreateTable(name, prepared, true)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(ddl); err != nil {
		return wrapExecErr(fmt.Sprintf("creating table %s", name), err)
	}

	for i := range prepared {
		if prepared[i].Enum == nil {
			continue
		}
		if err := s.addEnumMetadata(name, prepared[i].Name, prepared[i].Enum.Table,
			prepared[i].Enum.Description); err != nil {
			return err
		}
	}
	return nil
}

// AddField appends a field to an existing table via reconstruct-and-swap.
// Prior rows read the new field as NULL (or its default).
func (s *Store) AddField(table string, field types.Field) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureAttached(); err != nil {
		return err
	}
	if err := ident.ValidateAll(table, field.Name); err != nil {
		return err
	}
	if field.IsManyToMany() {
		return fmt.Errorf("%w: field %s is many-to-many; use CreateJunctionTable",
			types.ErrValidation, field.Name)
	}

	existing, err := s.getFields(table)
	if err != nil {
		return err
	}
	for _, f := range existing {
		if f.Name == field.Name {
			return fmt.Errorf("%w: field %s.%s already exists", types.ErrSchema, table, field.Name)
		}
	}

	// Enum tables are created up front; they are idempotent and never
	// dropped, so a later rollback leaves no inconsistency behind.
	if err := s.prepareEnumField(&field); err != nil {
		return err
	}

	old, err := s.physicalFields(table)
	if err != nil {
		return err
	}
	newFields := append(append([]types.Field{}, old...), field)
	copyCols := fieldNames(old)

	return s.rebuild(table, newFields, copyCols, func(tx *sql.Tx) error {
		if field.Enum == nil {
			return nil
		}
		if _, err := tx.Exec(createMetaEnumField); err != nil {
			return err
		}
		_, err := tx.Exec(`
			INSERT INTO _meta_enum_field (table_name, field_name, enum_table_name, description)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(table_name, field_name) DO UPDATE SET
				enum_table_name = excluded.enum_table_name,
				description = excluded.description`,
			table, field.Name, field.Enum.Table, nullableString(field.Enum.Description))
		return err
	})
}

// DeleteField removes a field via reconstruct-and-swap, dropping any foreign
// key whose local field is the deleted one and any catalog row naming it.
// Deleting a virtual many-to-many field drops its junction table instead.
func (s *Store) DeleteField(table, field string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureAttached(); err != nil {
		return err
	}
	if err := ident.ValidateAll(table, field); err != nil {
		return err
	}

	fields, err := s.getFields(table)
	if err != nil {
		return err
	}
	var target *types.Field
	for i := range fields {
		if fields[i].Name == field {
			target = &fields[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("%w: no field %s.%s", types.ErrSchema, table, field)
	}

	if target.IsManyToMany() {
		return s.deleteRelationField(table, target)
	}

	old, err := s.physicalFields(table)
	if err != nil {
		return err
	}
	var newFields []types.Field
	for _, f := range old {
		if f.Name != field {
			newFields = append(newFields, f)
		}
	}
	if len(newFields) == 0 {
		return fmt.Errorf("%w: cannot delete the last field of %s", types.ErrValidation, table)
	}
	copyCols := fieldNames(newFields)

	displayMeta, err := s.tableExists(metaDisplayFieldTable)
	if err != nil {
		return err
	}
	enumMeta, err := s.tableExists(metaEnumFieldTable)
	if err != nil {
		return err
	}

	return s.rebuild(table, newFields, copyCols, func(tx *sql.Tx) error {
		if displayMeta {
			if _, err := tx.Exec(
				"DELETE FROM _meta_display_field WHERE table_name = ? AND field_name = ?",
				table, field); err != nil {
				return err
			}
		}
		if enumMeta {
			if _, err := tx.Exec(
				"DELETE FROM _meta_enum_field WHERE table_name = ? AND field_name = ?",
				table, field); err != nil {
				return err
			}
		}
		return nil
	})
}

// deleteRelationField removes a virtual field: the junction table goes, the
// relation descriptor and display mapping go with it. The caller holds s.mu.
func (s *Store) deleteRelationField(table string, field *types.Field) error {
	junction := field.ManyToMany.JunctionTable
	if _, err := s.db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", junction)); err != nil {
		return fmt.Errorf("dropping junction table %s: %w", junction, err)
	}
	if err := s.unregisterRelation(table, field.Name); err != nil {
		return err
	}
	return s.removeDisplayField(table, field.Name)
}

// DeleteTable drops a table. Idempotent: a missing table is not an error.
// Catalog rows referencing the table are removed so no metadata outlives it.
func (s *Store) DeleteTable(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureAttached(); err != nil {
		return err
	}
	if err := ident.Validate(name); err != nil {
		return err
	}
	if err := s.dropRelationsOf(name); err != nil {
		return err
	}
	if _, err := s.db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", name)); err != nil {
		return fmt.Errorf("dropping table %s: %w", name, err)
	}

	for meta, stmt := range map[string]string{
		metaDisplayFieldTable: "DELETE FROM _meta_display_field WHERE table_name = ?",
		metaEnumFieldTable:    "DELETE FROM _meta_enum_field WHERE table_name = ?",
		metaManyToManyTable:   "DELETE FROM _meta_many_to_many WHERE from_table = ?",
	} {
		exists, err := s.tableExists(meta)
		if err != nil {
			return err
		}
		if !exists {
			continue
		}
		if _, err := s.db.Exec(stmt, name); err != nil {
			return fmt.Errorf("cleaning catalog for %s: %w", name, err)
		}
	}
	return nil
}

// dropRelationsOf tears down every junction table holding a foreign key
// into table, no matter which side registered the relation. Both catalog
// directions and the track fields' display rows go with it, so dropping
// either side of a relation leaves nothing behind on the other.
// The caller must hold s.mu.
func (s *Store) dropRelationsOf(table string) error {
	exists, err := s.tableExists(metaManyToManyTable)
	if err != nil || !exists {
		return err
	}

	rows, err := s.db.Query(fmt.Sprintf(
		"SELECT from_table, track_field_name, junction_table FROM %s", metaManyToManyTable))
	if err != nil {
		return fmt.Errorf("scanning relation catalog: %w", err)
	}
	type relation struct {
		from, track, junction string
	}
	var relations []relation
	for rows.Next() {
		var r relation
		if err := rows.Scan(&r.from, &r.track, &r.junction); err != nil {
			rows.Close()
			return fmt.Errorf("scanning relation catalog: %w", err)
		}
		relations = append(relations, r)
	}
	if err := rows.Close(); err != nil {
		return err
	}

	doomed := make(map[string]bool)
	for _, r := range relations {
		if doomed[r.junction] {
			continue
		}
		junctionExists, err := s.tableExists(r.junction)
		if err != nil {
			return err
		}
		if !junctionExists {
			continue
		}
		fks, err := s.foreignKeys(r.junction)
		if err != nil {
			return err
		}
		for _, fk := range fks {
			if fk.Table == table {
				doomed[r.junction] = true
				break
			}
		}
	}

	for _, r := range relations {
		if !doomed[r.junction] {
			continue
		}
		if err := s.unregisterRelation(r.from, r.track); err != nil {
			return err
		}
		if err := s.removeDisplayField(r.from, r.track); err != nil {
			return err
		}
	}
	for junction := range doomed {
		if _, err := s.db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", junction)); err != nil {
			return fmt.Errorf("dropping junction %s: %w", junction, err)
		}
	}
	return nil
}

// rebuild runs the swap: create a temporary table with the new field list,
// copy rows over an explicit ordered column list, drop the original, rename,
// apply catalog fixes, all in one transaction. Foreign-key enforcement is
// off for the duration because the old table may still be referenced.
// The caller must hold s.mu.
func (s *Store) rebuild(table string, newFields []types.Field, copyCols []string, catalogFix func(tx *sql.Tx) error) error {
	tmp := fmt.Sprintf("%s_rebuild_%s", table,
		strings.ReplaceAll(uuid.New().String(), "-", ""))

	ddl, err := buildCreateTable(tmp, newFields, false)
	if err != nil {
		return err
	}

	if _, err := s.db.Exec("PRAGMA foreign_keys = OFF"); err != nil {
		return fmt.Errorf("disabling foreign keys: %w", err)
	}
	defer func() {
		// Enforcement must come back regardless of how the swap ended.
		_, _ = s.db.Exec("PRAGMA foreign_keys = ON")
	}()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning rebuild of %s: %w", table, err)
	}
	defer tx.Rollback()

	fail := func(step string, cause error) error {
		return fmt.Errorf("rebuilding %s (%s): %w: %w", table, step, types.ErrSchema, cause)
	}

	if _, err := tx.Exec(ddl); err != nil {
		return fail("create temp", err)
	}
	if len(copyCols) > 0 {
		cols := strings.Join(copyCols, ", ")
		copySQL := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s", tmp, cols, cols, table)
		if _, err := tx.Exec(copySQL); err != nil {
			return fail("copy rows", err)
		}
	}
	if _, err := tx.Exec(fmt.Sprintf("DROP TABLE %s", table)); err != nil {
		return fail("drop original", err)
	}
	if _, err := tx.Exec(fmt.Sprintf("ALTER TABLE %s RENAME TO %s", tmp, table)); err != nil {
		return fail("rename", err)
	}
	if catalogFix != nil {
		if err := catalogFix(tx); err != nil {
			return fail("update catalog", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fail("commit", err)
	}
	return nil
}

// prepareEnumField wires an enum-backed field: the enum table is created (or
// reused), and the field gets a foreign key into it. The caller holds s.mu.
func (s *Store) prepareEnumField(field *types.Field) error {
	if field.Enum == nil {
		return nil
	}
	enumTable := field.Enum.Table
	if enumTable == "" {
		enumTable = enumTablePrefix + field.Name
		field.Enum.Table = enumTable
	}
	if err := s.createEnumTable(enumTable, field.Enum.Values); err != nil {
		return err
	}
	if field.ForeignKey == nil {
		target := "value"
		if field.Type == types.FieldInteger {
			target = "id"
		}
		field.ForeignKey = &types.ForeignKey{Table: enumTable, From: field.Name, To: target}
	}
	return nil
}

// buildCreateTable renders CREATE TABLE DDL from a field list. Every name is
// validated before splicing; referential actions come from the allow-list.
func buildCreateTable(name string, fields []types.Field, ifNotExists bool) (string, error) {
	if err := ident.Validate(name); err != nil {
		return "", err
	}

	var pks []string
	for _, f := range fields {
		if f.PrimaryKey {
			if f.Type == types.FieldNull || f.Type == types.FieldManyToMany {
				return "", fmt.Errorf("%w: field %s cannot be a primary key of type %s",
					types.ErrValidation, f.Name, f.Type)
			}
			pks = append(pks, f.Name)
		}
	}

	var defs []string
	for _, f := range fields {
		def, err := renderFieldDef(f, len(pks) == 1)
		if err != nil {
			return "", err
		}
		defs = append(defs, def)
	}
	if len(pks) > 1 {
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}
	for _, f := range fields {
		if f.ForeignKey == nil {
			continue
		}
		clause, err := renderForeignKey(*f.ForeignKey)
		if err != nil {
			return "", err
		}
		defs = append(defs, clause)
	}

	stmt := "CREATE TABLE "
	if ifNotExists {
		stmt += "IF NOT EXISTS "
	}
	return stmt + fmt.Sprintf("%s (\n    %s\n)", name, strings.Join(defs, ",\n    ")), nil
}

// renderFieldDef renders one column definition. A single primary key is
// declared inline; composite keys use a table-level clause.
func renderFieldDef(f types.Field, inlinePK bool) (string, error) {
	if err := ident.Validate(f.Name); err != nil {
		return "", err
	}
	if !types.IsValidFieldType(f.Type) {
		return "", fmt.Errorf("%w: field %s has unknown type %q", types.ErrValidation, f.Name, f.Type)
	}
	if f.Type == types.FieldManyToMany {
		return "", fmt.Errorf("%w: field %s is virtual and has no column definition",
			types.ErrValidation, f.Name)
	}

	parts := []string{f.Name, string(f.Type)}
	if f.PrimaryKey && inlinePK {
		parts = append(parts, "PRIMARY KEY")
	}
	if f.NotNull {
		parts = append(parts, "NOT NULL")
	}
	if f.Unique {
		parts = append(parts, "UNIQUE")
	}
	if f.Default != nil {
		lit, err := renderLiteral(f.Default)
		if err != nil {
			return "", fmt.Errorf("%w: field %s default: %w", types.ErrValidation, f.Name, err)
		}
		parts = append(parts, "DEFAULT "+lit)
	}
	return strings.Join(parts, " "), nil
}

// renderForeignKey renders a table-level FOREIGN KEY clause.
func renderForeignKey(fk types.ForeignKey) (string, error) {
	if err := ident.ValidateAll(fk.Table, fk.From, fk.To); err != nil {
		return "", err
	}
	clause := fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s(%s)", fk.From, fk.Table, fk.To)
	if fk.OnUpdate != "" {
		action := strings.ToUpper(fk.OnUpdate)
		if !fkActions[action] {
			return "", fmt.Errorf("%w: unknown ON UPDATE action %q", types.ErrValidation, fk.OnUpdate)
		}
		clause += " ON UPDATE " + action
	}
	if fk.OnDelete != "" {
		action := strings.ToUpper(fk.OnDelete)
		if !fkActions[action] {
			return "", fmt.Errorf("%w: unknown ON DELETE action %q", types.ErrValidation, fk.OnDelete)
		}
		clause += " ON DELETE " + action
	}
	return clause, nil
}

// renderLiteral renders a DEFAULT literal. Only scalar defaults are
// representable; strings are quoted with doubled single quotes.
func renderLiteral(v any) (string, error) {
	switch val := v.(type) {
	case types.RawDefault:
		return string(val), nil
	case string:
		return "'" + strings.ReplaceAll(val, "'", "''") + "'", nil
	case int, int32, int64, uint, uint32, uint64:
		return fmt.Sprintf("%d", val), nil
	case float32, float64:
		return fmt.Sprintf("%v", val), nil
	case bool:
		if val {
			return "1", nil
		}
		return "0", nil
	default:
		return "", fmt.Errorf("unsupported literal type %T", v)
	}
}

// fieldNames extracts names from a field list.
func fieldNames(fields []types.Field) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}
