package sqlite

import "fmt"

// Catalog table names. The underscore prefix keeps them visually apart from
// user tables; they are created lazily on first write, never at attach time,
// so an untouched database stays free of them.
const (
	metaDisplayFieldTable = "_meta_display_field"
	metaEnumFieldTable    = "_meta_enum_field"
	metaManyToManyTable   = "_meta_many_to_many"
)

// enumTablePrefix is the naming convention for auto-generated enum tables.
const enumTablePrefix = "enum_"

// Catalog DDL. Each statement is idempotent.
const (
	createMetaDisplayField = `CREATE TABLE IF NOT EXISTS _meta_display_field (
    table_name TEXT NOT NULL,
    field_name TEXT NOT NULL,
    display_foreign_field_name TEXT NOT NULL,
    display_format TEXT,
    PRIMARY KEY (table_name, field_name)
);`

	createMetaEnumField = `CREATE TABLE IF NOT EXISTS _meta_enum_field (
    table_name TEXT NOT NULL,
    field_name TEXT NOT NULL,
    enum_table_name TEXT NOT NULL,
    description TEXT,
    PRIMARY KEY (table_name, field_name)
);`

	createMetaManyToMany = `CREATE TABLE IF NOT EXISTS _meta_many_to_many (
    from_table TEXT NOT NULL,
    track_field_name TEXT NOT NULL,
    junction_table TEXT NOT NULL,
    PRIMARY KEY (from_table, track_field_name)
);`
)

// metaDDL maps each catalog table to its DDL for lazy creation.
var metaDDL = map[string]string{
	metaDisplayFieldTable: createMetaDisplayField,
	metaEnumFieldTable:    createMetaEnumField,
	metaManyToManyTable:   createMetaManyToMany,
}

// ensureMetaTable creates a catalog table if it does not exist yet.
// Called before every catalog write; reads never create catalog tables.
// The caller must hold s.mu.
func (s *Store) ensureMetaTable(name string) error {
	ddl, ok := metaDDL[name]
	if !ok {
		return fmt.Errorf("unknown catalog table %s", name)
	}
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("creating catalog table %s: %w", name, err)
	}
	return nil
}
