package sqlite

import (
	"fmt"

	"github.com/mesh-intelligence/reshape/internal/ident"
	"github.com/mesh-intelligence/reshape/pkg/types"
)

// Enum fields. An enum table maps a surrogate id to a unique text value;
// enum-typed fields reference it through a foreign key recorded in the
// catalog. Enum tables are created lazily and never dropped automatically.

// CreateEnumTable creates an enum table if absent and inserts each value
// with insert-or-ignore semantics. Idempotent: overlapping values on a
// second call are silently skipped.
func (s *Store) CreateEnumTable(name string, values []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureAttached(); err != nil {
		return err
	}
	return s.createEnumTable(name, values)
}

func (s *Store) createEnumTable(name string, values []string) error {
	if err := ident.Validate(name); err != nil {
		return err
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    value TEXT NOT NULL UNIQUE
)`, name)
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("creating enum table %s: %w", name, err)
	}
	for _, value := range values {
		if _, err := s.db.Exec(
			fmt.Sprintf("INSERT OR IGNORE INTO %s (value) VALUES (?)", name), value); err != nil {
			return wrapExecErr(fmt.Sprintf("inserting enum value into %s", name), err)
		}
	}
	return nil
}

// GetEnumValues returns the values of an enum table in storage order.
func (s *Store) GetEnumValues(enumTable string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureAttached(); err != nil {
		return nil, err
	}
	if err := ident.Validate(enumTable); err != nil {
		return nil, err
	}
	exists, err := s.tableExists(enumTable)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: no enum table %s", types.ErrSchema, enumTable)
	}

	rows, err := s.db.Query(fmt.Sprintf("SELECT value FROM %s ORDER BY id", enumTable))
	if err != nil {
		return nil, fmt.Errorf("reading enum table %s: %w", enumTable, err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scanning enum value: %w", err)
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// GetPossibleValues returns the distinct values of displayField on table,
// ascending. An empty displayField selects the table's primary key. A
// displayField that is not a field of table is a validation error.
func (s *Store) GetPossibleValues(table, displayField string) ([]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureAttached(); err != nil {
		return nil, err
	}
	if err := ident.Validate(table); err != nil {
		return nil, err
	}

	fields, err := s.physicalFields(table)
	if err != nil {
		return nil, err
	}

	if displayField == "" {
		for _, f := range fields {
			if f.PrimaryKey {
				displayField = f.Name
				break
			}
		}
		if displayField == "" {
			displayField = "rowid"
		}
	} else {
		if err := ident.Validate(displayField); err != nil {
			return nil, err
		}
		found := false
		for _, f := range fields {
			if f.Name == displayField {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: no field %s.%s", types.ErrValidation, table, displayField)
		}
	}

	rows, err := s.db.Query(fmt.Sprintf(
		"SELECT DISTINCT %s FROM %s ORDER BY %s ASC", displayField, table, displayField))
	if err != nil {
		return nil, fmt.Errorf("reading possible values of %s.%s: %w", table, displayField, err)
	}
	defer rows.Close()

	var values []any
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scanning possible value: %w", err)
		}
		values = append(values, normalizeValue(v))
	}
	return values, rows.Err()
}
