package sqlite

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/mesh-intelligence/reshape/internal/ident"
	"github.com/mesh-intelligence/reshape/pkg/types"
)

// Record CRUD. Virtual relation entries are split off the incoming data
// before the physical row is touched; relation links always go through the
// full-replace junction update.

// InsertRecord writes one record and returns the generated key. Relation
// entries in data are stripped before the row insert and, with handleM2M,
// written as junction links keyed by the fresh row id.
func (s *Store) InsertRecord(table string, data types.Row, handleM2M bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureAttached(); err != nil {
		return 0, err
	}
	if err := ident.Validate(table); err != nil {
		return 0, err
	}

	scalars, relations, err := s.splitRelations(table, data)
	if err != nil {
		return 0, err
	}

	var key int64
	if len(scalars) == 0 {
		res, err := s.db.Exec(fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", table))
		if err != nil {
			return 0, wrapExecErr(fmt.Sprintf("inserting into %s", table), err)
		}
		key, err = res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("reading generated key: %w", err)
		}
	} else {
		cols := sortedKeys(scalars)
		if err := ident.ValidateAll(cols...); err != nil {
			return 0, err
		}
		placeholders := make([]string, len(cols))
		args := make([]any, len(cols))
		for i, col := range cols {
			placeholders[i] = "?"
			args[i] = scalars[col]
		}
		res, err := s.db.Exec(fmt.Sprintf(
			"INSERT INTO %s (%s) VALUES (%s)",
			table, strings.Join(cols, ", "), strings.Join(placeholders, ", ")), args...)
		if err != nil {
			return 0, wrapExecErr(fmt.Sprintf("inserting into %s", table), err)
		}
		key, err = res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("reading generated key: %w", err)
		}
	}

	if handleM2M {
		for track, selected := range relations {
			// The caller only knows the fresh row id at this point.
			if err := s.updateJunctionTable(table, track, key, selected, true); err != nil {
				return 0, err
			}
		}
	}
	return key, nil
}

// UpdateRecord updates the record addressed by keyField = keyValue. Scalar
// fields update via SET; relation fields replace their full link set. An
// empty keyField addresses the record by row id.
func (s *Store) UpdateRecord(table string, data types.Row, keyValue any, keyField string, handleM2M bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureAttached(); err != nil {
		return err
	}
	if keyField == "" {
		keyField = "rowid"
	}
	if err := ident.ValidateAll(table, keyField); err != nil {
		return err
	}

	scalars, relations, err := s.splitRelations(table, data)
	if err != nil {
		return err
	}

	if len(scalars) > 0 {
		cols := sortedKeys(scalars)
		if err := ident.ValidateAll(cols...); err != nil {
			return err
		}
		sets := make([]string, len(cols))
		args := make([]any, 0, len(cols)+1)
		for i, col := range cols {
			sets[i] = col + " = ?"
			args = append(args, scalars[col])
		}
		args = append(args, keyValue)
		if _, err := s.db.Exec(fmt.Sprintf(
			"UPDATE %s SET %s WHERE %s = ?",
			table, strings.Join(sets, ", "), keyField), args...); err != nil {
			return wrapExecErr(fmt.Sprintf("updating %s", table), err)
		}
	}

	if handleM2M {
		for track, selected := range relations {
			if err := s.updateJunctionTable(table, track, keyValue, selected, keyField == "rowid"); err != nil {
				return err
			}
		}
	}
	return nil
}

// DeleteRecord removes one record. Junction rows referencing it are deleted
// first, for every relation the table owns; cascading foreign keys alone
// are not relied upon. An empty keyField addresses the table's primary key.
func (s *Store) DeleteRecord(table string, keyValue any, keyField string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureAttached(); err != nil {
		return err
	}
	if err := ident.Validate(table); err != nil {
		return err
	}
	if keyField == "" {
		pk, err := s.primaryKeyOf(table)
		if err != nil {
			return err
		}
		keyField = pk
	}
	if err := ident.Validate(keyField); err != nil {
		return err
	}

	relations, err := s.getRelations(table)
	if err != nil {
		return err
	}
	for _, junction := range relations {
		sides, err := s.junctionSidesFor(junction, table)
		if err != nil {
			return err
		}
		anchor := keyValue
		if keyField != sides.anchorKey {
			anchor, err = s.translateKey(table, keyField, sides.anchorKey, keyValue)
			if err != nil {
				return err
			}
			if anchor == nil {
				continue // record absent; the main delete reports it
			}
		}
		if _, err := s.db.Exec(
			fmt.Sprintf("DELETE FROM %s WHERE %s = ?", junction, sides.anchorCol), anchor); err != nil {
			return fmt.Errorf("deleting junction rows in %s: %w", junction, err)
		}
	}

	res, err := s.db.Exec(fmt.Sprintf("DELETE FROM %s WHERE %s = ?", table, keyField), keyValue)
	if err != nil {
		return wrapExecErr(fmt.Sprintf("deleting from %s", table), err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: no record %v in %s", types.ErrNotFound, keyValue, table)
	}
	return nil
}

// DeleteRecords removes a batch of records by key. Unlike DeleteRecord it
// does not clean junction rows; callers relying on relation cleanup must
// delete record by record.
func (s *Store) DeleteRecords(table string, keyValues []any, keyField string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureAttached(); err != nil {
		return err
	}
	if keyField == "" {
		keyField = "rowid"
	}
	if err := ident.ValidateAll(table, keyField); err != nil {
		return err
	}
	if len(keyValues) == 0 {
		return nil
	}

	placeholders := make([]string, len(keyValues))
	for i := range placeholders {
		placeholders[i] = "?"
	}
	if _, err := s.db.Exec(fmt.Sprintf(
		"DELETE FROM %s WHERE %s IN (%s)",
		table, keyField, strings.Join(placeholders, ",")), keyValues...); err != nil {
		return wrapExecErr(fmt.Sprintf("deleting from %s", table), err)
	}
	return nil
}

// splitRelations partitions incoming data into scalar fields and declared
// relation entries. Relation values must be slices of keys.
func (s *Store) splitRelations(table string, data types.Row) (types.Row, map[string][]any, error) {
	declared, err := s.getRelations(table)
	if err != nil {
		return nil, nil, err
	}

	scalars := make(types.Row, len(data))
	relations := make(map[string][]any)
	for key, value := range data {
		if _, ok := declared[key]; !ok {
			scalars[key] = value
			continue
		}
		switch v := value.(type) {
		case []any:
			relations[key] = v
		case nil:
			relations[key] = nil
		default:
			return nil, nil, fmt.Errorf("%w: relation field %s.%s wants a list of keys, got %T",
				types.ErrValidation, table, key, value)
		}
	}
	return scalars, relations, nil
}

// primaryKeyOf returns the table's primary key field, falling back to rowid.
func (s *Store) primaryKeyOf(table string) (string, error) {
	fields, err := s.physicalFields(table)
	if err != nil {
		return "", err
	}
	for _, f := range fields {
		if f.PrimaryKey {
			return f.Name, nil
		}
	}
	return "rowid", nil
}

// translateKey resolves the value of wantField for the record addressed by
// byField = keyValue. Returns nil when the record does not exist.
func (s *Store) translateKey(table, byField, wantField string, keyValue any) (any, error) {
	if err := ident.ValidateAll(byField, wantField); err != nil {
		return nil, err
	}
	var out any
	err := s.db.QueryRow(fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = ?", wantField, table, byField), keyValue).Scan(&out)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolving key in %s: %w", table, err)
	}
	return normalizeValue(out), nil
}

// sortedKeys returns map keys in deterministic order.
func sortedKeys(m types.Row) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
