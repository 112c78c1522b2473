package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/reshape/internal/ident"
	"github.com/mesh-intelligence/reshape/pkg/types"
)

// Schema introspection. Physical columns and constraints come from the
// engine's pragmas; virtual many-to-many fields and enum pairings come from
// the catalog. GetFields merges both views, which makes it the snapshot
// source for reconstruct-and-swap.

// GetFields returns every field of a table: physical columns first, in
// declaration order, then virtual many-to-many fields from the catalog.
func (s *Store) GetFields(table string) ([]types.Field, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureAttached(); err != nil {
		return nil, err
	}
	if err := ident.Validate(table); err != nil {
		return nil, err
	}
	return s.getFields(table)
}

func (s *Store) getFields(table string) ([]types.Field, error) {
	fields, err := s.physicalFields(table)
	if err != nil {
		return nil, err
	}

	// Enum pairings from the catalog.
	for i := range fields {
		enumTable, err := s.getEnumTableName(table, fields[i].Name)
		if err != nil {
			return nil, err
		}
		if enumTable != "" {
			fields[i].Enum = &types.EnumSpec{Table: enumTable}
		}
	}

	// Virtual relation fields from the catalog.
	tracks, err := s.getManyToManyFields(table)
	if err != nil {
		return nil, err
	}
	relations, err := s.getRelations(table)
	if err != nil {
		return nil, err
	}
	for _, track := range tracks {
		fields = append(fields, types.Field{
			Name: track,
			Type: types.FieldManyToMany,
			ManyToMany: &types.ManyToManyField{
				Table:         table,
				TrackField:    track,
				JunctionTable: relations[track],
			},
		})
	}
	return fields, nil
}

// physicalFields reads the engine's view of a table: columns, primary keys,
// uniqueness, and foreign keys. The caller must hold s.mu and have validated
// the table name.
func (s *Store) physicalFields(table string) ([]types.Field, error) {
	exists, err := s.tableExists(table)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: no table %s", types.ErrSchema, table)
	}

	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("introspecting %s: %w", table, err)
	}
	defer rows.Close()

	var fields []types.Field
	for rows.Next() {
		var cid, notNull, pk int
		var name, declType string
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &declType, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scanning column of %s: %w", table, err)
		}
		f := types.Field{
			Name:       name,
			Type:       mapDeclaredType(declType),
			NotNull:    notNull != 0,
			PrimaryKey: pk != 0,
		}
		if dflt.Valid {
			f.Default = types.RawDefault(dflt.String)
		}
		fields = append(fields, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	fks, err := s.foreignKeys(table)
	if err != nil {
		return nil, err
	}
	for i := range fields {
		for j := range fks {
			if fks[j].From == fields[i].Name {
				fk := fks[j]
				fields[i].ForeignKey = &fk
			}
		}
	}

	unique, err := s.uniqueFields(table)
	if err != nil {
		return nil, err
	}
	for i := range fields {
		if unique[fields[i].Name] {
			fields[i].Unique = true
		}
	}
	return fields, nil
}

// GetField returns a single field by name, virtual fields included.
func (s *Store) GetField(table, name string) (types.Field, error) {
	fields, err := s.GetFields(table)
	if err != nil {
		return types.Field{}, err
	}
	for _, f := range fields {
		if f.Name == name {
			return f, nil
		}
	}
	return types.Field{}, fmt.Errorf("%w: no field %s.%s", types.ErrSchema, table, name)
}

// GetFieldNames returns field names in GetFields order.
func (s *Store) GetFieldNames(table string) ([]string, error) {
	fields, err := s.GetFields(table)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names, nil
}

// GetForeignKeys returns the engine-level foreign keys of a table.
func (s *Store) GetForeignKeys(table string) ([]types.ForeignKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureAttached(); err != nil {
		return nil, err
	}
	if err := ident.Validate(table); err != nil {
		return nil, err
	}
	exists, err := s.tableExists(table)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: no table %s", types.ErrSchema, table)
	}
	return s.foreignKeys(table)
}

func (s *Store) foreignKeys(table string) ([]types.ForeignKey, error) {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA foreign_key_list(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("reading foreign keys of %s: %w", table, err)
	}
	defer rows.Close()

	var fks []types.ForeignKey
	for rows.Next() {
		var id, seq int
		var refTable, from string
		var to sql.NullString
		var onUpdate, onDelete, match string
		if err := rows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return nil, fmt.Errorf("scanning foreign key of %s: %w", table, err)
		}
		fk := types.ForeignKey{
			Table:    refTable,
			From:     from,
			OnUpdate: onUpdate,
			OnDelete: onDelete,
		}
		if to.Valid {
			fk.To = to.String
		}
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}

// GetPrimaryKeys returns the primary-key field names in key order.
func (s *Store) GetPrimaryKeys(table string) ([]string, error) {
	fields, err := s.GetFields(table)
	if err != nil {
		return nil, err
	}
	var pks []string
	for _, f := range fields {
		if f.PrimaryKey {
			pks = append(pks, f.Name)
		}
	}
	return pks, nil
}

// GetUniqueFields returns fields covered by a single-column unique index.
func (s *Store) GetUniqueFields(table string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureAttached(); err != nil {
		return nil, err
	}
	if err := ident.Validate(table); err != nil {
		return nil, err
	}
	// physicalFields already marks unique columns, in declaration order.
	fields, err := s.physicalFields(table)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, f := range fields {
		if f.Unique {
			names = append(names, f.Name)
		}
	}
	return names, nil
}

// uniqueFields maps column names covered by single-column unique indexes.
func (s *Store) uniqueFields(table string) (map[string]bool, error) {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA index_list(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("reading indexes of %s: %w", table, err)
	}
	defer rows.Close()

	var uniqueIndexes []string
	for rows.Next() {
		var seq, isUnique, partial int
		var name, origin string
		if err := rows.Scan(&seq, &name, &isUnique, &origin, &partial); err != nil {
			return nil, fmt.Errorf("scanning index of %s: %w", table, err)
		}
		// origin "pk" indexes back the primary key, not a UNIQUE constraint.
		if isUnique != 0 && origin != "pk" {
			uniqueIndexes = append(uniqueIndexes, name)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	unique := make(map[string]bool)
	for _, idx := range uniqueIndexes {
		cols, err := s.indexColumns(idx)
		if err != nil {
			return nil, err
		}
		if len(cols) == 1 {
			unique[cols[0]] = true
		}
	}
	return unique, nil
}

func (s *Store) indexColumns(index string) ([]string, error) {
	// Index names are engine-generated or previously validated; quoting
	// guards the generated ones (e.g. "sqlite_autoindex_t_1").
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA index_info(%q)", index))
	if err != nil {
		return nil, fmt.Errorf("reading index %s: %w", index, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var seqno, cid int
		var name sql.NullString
		if err := rows.Scan(&seqno, &cid, &name); err != nil {
			return nil, fmt.Errorf("scanning index %s: %w", index, err)
		}
		if name.Valid {
			cols = append(cols, name.String)
		}
	}
	return cols, rows.Err()
}

// mapDeclaredType reduces a declared column type to the closed FieldType set
// using the engine's affinity rules.
func mapDeclaredType(decl string) types.FieldType {
	d := strings.ToUpper(strings.TrimSpace(decl))
	switch {
	case d == "":
		return types.FieldBlob
	case d == "DATETIME":
		return types.FieldDateTime
	case strings.Contains(d, "INT"):
		return types.FieldInteger
	case strings.Contains(d, "CHAR"), strings.Contains(d, "CLOB"), strings.Contains(d, "TEXT"):
		return types.FieldText
	case strings.Contains(d, "BLOB"):
		return types.FieldBlob
	case strings.Contains(d, "REAL"), strings.Contains(d, "FLOA"), strings.Contains(d, "DOUB"):
		return types.FieldReal
	case d == "NULL":
		return types.FieldNull
	default:
		return types.FieldText
	}
}
