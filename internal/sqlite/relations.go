package sqlite

import (
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/mesh-intelligence/reshape/internal/ident"
	"github.com/mesh-intelligence/reshape/pkg/types"
)

// Many-to-many relations. A relation is realized by a junction table of two
// cascading foreign keys and addressed through a virtual track field
// recorded in the catalog. Junction names derive from the sorted pair of
// table names, so the same relation is nameable from either side.

// junctionSides describes the two foreign keys of a junction table as seen
// from one anchor table.
type junctionSides struct {
	anchorCol    string // junction column referencing the anchor table
	anchorKey    string // referenced field on the anchor table
	relatedTable string
	relatedCol   string // junction column referencing the related table
	relatedKey   string // referenced field on the related table
}

// CreateJunctionTable creates the junction table for a many-to-many relation
// between fromTable and toTable, registers the relation in the catalog (both
// directions when TrackViceVersa is set), and records any display-field
// mappings. Returns the junction table name.
func (s *Store) CreateJunctionTable(fromTable, toTable string, opts types.JunctionOptions) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureAttached(); err != nil {
		return "", err
	}
	if err := ident.ValidateAll(fromTable, toTable); err != nil {
		return "", err
	}
	if fromTable == toTable {
		return "", fmt.Errorf("%w: self relation on %s is not supported", types.ErrValidation, fromTable)
	}

	fromField := opts.FromField
	if fromField == "" {
		fromField = "id"
	}
	toField := opts.ToField
	if toField == "" {
		toField = "id"
	}
	junction := opts.JunctionName
	if junction == "" {
		pair := []string{fromTable, toTable}
		sort.Strings(pair)
		junction = strings.Join(pair, "_")
	}
	trackField := opts.TrackField
	if trackField == "" {
		trackField = toTable + "_link"
	}
	if err := ident.ValidateAll(fromField, toField, junction, trackField); err != nil {
		return "", err
	}

	fromType, err := s.fieldType(fromTable, fromField)
	if err != nil {
		return "", err
	}
	toType, err := s.fieldType(toTable, toField)
	if err != nil {
		return "", err
	}

	fromCol := fromTable + "_" + fromField
	toCol := toTable + "_" + toField
	fields := []types.Field{
		{
			Name: fromCol, Type: fromType, NotNull: true, PrimaryKey: true,
			ForeignKey: &types.ForeignKey{Table: fromTable, From: fromCol, To: fromField, OnDelete: "CASCADE"},
		},
		{
			Name: toCol, Type: toType, NotNull: true, PrimaryKey: true,
			ForeignKey: &types.ForeignKey{Table: toTable, From: toCol, To: toField, OnDelete: "CASCADE"},
		},
	}
	ddl, err := buildCreateTable(junction, fields, true)
	if err != nil {
		return "", err
	}
	if _, err := s.db.Exec(ddl); err != nil {
		return "", wrapExecErr(fmt.Sprintf("creating junction table %s", junction), err)
	}

	if err := s.registerRelation(fromTable, trackField, junction); err != nil {
		return "", err
	}
	if opts.DisplayField != "" {
		if err := ident.Validate(opts.DisplayField); err != nil {
			return "", err
		}
		if err := s.addDisplayField(fromTable, trackField, opts.DisplayField, ""); err != nil {
			return "", err
		}
	}

	if opts.TrackViceVersa {
		reverse := opts.ReverseTrackField
		if reverse == "" {
			reverse = fromTable + "_link"
		}
		if err := ident.Validate(reverse); err != nil {
			return "", err
		}
		if err := s.registerRelation(toTable, reverse, junction); err != nil {
			return "", err
		}
		if opts.ReverseDisplayField != "" {
			if err := ident.Validate(opts.ReverseDisplayField); err != nil {
				return "", err
			}
			if err := s.addDisplayField(toTable, reverse, opts.ReverseDisplayField, ""); err != nil {
				return "", err
			}
		}
	}
	return junction, nil
}

// UpdateJunctionTable replaces the full link set for one anchor value: every
// existing junction row for the anchor is deleted, then one row per selected
// value is inserted. When isRowID is set, anchor is first translated from an
// internal row identifier to the table's key value, since freshly inserted
// records may only be addressable by row id.
func (s *Store) UpdateJunctionTable(fromTable, trackField string, anchor any, selected []any, isRowID bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureAttached(); err != nil {
		return err
	}
	if err := ident.ValidateAll(fromTable, trackField); err != nil {
		return err
	}
	return s.updateJunctionTable(fromTable, trackField, anchor, selected, isRowID)
}

func (s *Store) updateJunctionTable(fromTable, trackField string, anchor any, selected []any, isRowID bool) error {
	junction, err := s.relationJunction(fromTable, trackField)
	if err != nil {
		return err
	}
	sides, err := s.junctionSidesFor(junction, fromTable)
	if err != nil {
		return err
	}

	if isRowID {
		anchor, err = s.rowIDToKey(fromTable, sides.anchorKey, anchor)
		if err != nil {
			return err
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning junction update: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		fmt.Sprintf("DELETE FROM %s WHERE %s = ?", junction, sides.anchorCol), anchor); err != nil {
		return fmt.Errorf("clearing junction rows: %w", err)
	}
	insertSQL := fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES (?, ?)",
		junction, sides.anchorCol, sides.relatedCol)
	for _, value := range selected {
		if _, err := tx.Exec(insertSQL, anchor, value); err != nil {
			return wrapExecErr(fmt.Sprintf("linking %v in %s", value, junction), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing junction update: %w", err)
	}
	return nil
}

// GetManyToManyData resolves related values through a junction table,
// aggregated per anchor. The related display values are concatenated by the
// engine and converted back to their native type afterwards, since string
// aggregation loses type information. A nil FromValues resolves every
// distinct anchor.
func (s *Store) GetManyToManyData(table, trackField string, opts types.RelatedOptions) ([]types.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureAttached(); err != nil {
		return nil, err
	}
	if err := ident.ValidateAll(table, trackField); err != nil {
		return nil, err
	}
	return s.getManyToManyData(table, trackField, opts)
}

func (s *Store) getManyToManyData(table, trackField string, opts types.RelatedOptions) ([]types.Row, error) {
	junction, err := s.relationJunction(table, trackField)
	if err != nil {
		return nil, err
	}
	sides, err := s.junctionSidesFor(junction, table)
	if err != nil {
		return nil, err
	}

	display := opts.DisplayField
	if display == "" {
		df, err := s.getDisplayField(table, trackField)
		if err != nil {
			return nil, err
		}
		if df != nil {
			display = df.TargetField
		} else {
			display = sides.relatedKey
		}
	}
	if err := ident.Validate(display); err != nil {
		return nil, err
	}
	label := opts.DisplayLabel
	if label == "" {
		label = trackField
	}

	// char(31) is the unit separator: safe against values containing commas.
	query := fmt.Sprintf(
		"SELECT j.%s, GROUP_CONCAT(r.%s, char(31)) FROM %s j JOIN %s r ON r.%s = j.%s",
		sides.anchorCol, display, junction, sides.relatedTable, sides.relatedKey, sides.relatedCol)
	var args []any
	if opts.FromValues != nil {
		placeholders := make([]string, len(opts.FromValues))
		for i, v := range opts.FromValues {
			placeholders[i] = "?"
			args = append(args, v)
		}
		query += fmt.Sprintf(" WHERE j.%s IN (%s)", sides.anchorCol, strings.Join(placeholders, ","))
	}
	query += fmt.Sprintf(" GROUP BY j.%s", sides.anchorCol)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("resolving relation %s.%s: %w", table, trackField, err)
	}
	defer rows.Close()

	var results []types.Row
	for rows.Next() {
		var anchor any
		var joined sql.NullString
		if err := rows.Scan(&anchor, &joined); err != nil {
			return nil, fmt.Errorf("scanning relation row: %w", err)
		}
		values := []any{}
		if joined.Valid && joined.String != "" {
			for _, token := range strings.Split(joined.String, "\x1f") {
				values = append(values, convertToken(token))
			}
		}
		results = append(results, types.Row{
			sides.anchorKey: normalizeValue(anchor),
			label:           values,
		})
	}
	return results, rows.Err()
}

// junctionSidesFor orients a junction table's two foreign keys around the
// anchor table. A junction without a key back to the anchor means the
// catalog and the physical schema disagree.
func (s *Store) junctionSidesFor(junction, anchorTable string) (junctionSides, error) {
	exists, err := s.tableExists(junction)
	if err != nil {
		return junctionSides{}, err
	}
	if !exists {
		return junctionSides{}, fmt.Errorf("%w: junction table %s does not exist", types.ErrSchema, junction)
	}
	fks, err := s.foreignKeys(junction)
	if err != nil {
		return junctionSides{}, err
	}
	if len(fks) != 2 {
		return junctionSides{}, fmt.Errorf("%w: junction table %s has %d foreign keys, want 2",
			types.ErrSchema, junction, len(fks))
	}

	var sides junctionSides
	found := false
	for _, fk := range fks {
		if fk.Table == anchorTable && !found {
			sides.anchorCol = fk.From
			sides.anchorKey = fk.To
			found = true
		} else {
			sides.relatedTable = fk.Table
			sides.relatedCol = fk.From
			sides.relatedKey = fk.To
		}
	}
	if !found {
		return junctionSides{}, fmt.Errorf("%w: junction table %s has no key into %s",
			types.ErrSchema, junction, anchorTable)
	}
	return sides, nil
}

// rowIDToKey translates an internal row identifier into the table's key value.
func (s *Store) rowIDToKey(table, keyField string, rowID any) (any, error) {
	var key any
	err := s.db.QueryRow(
		fmt.Sprintf("SELECT %s FROM %s WHERE rowid = ?", keyField, table), rowID).Scan(&key)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: no row %v in %s", types.ErrNotFound, rowID, table)
	}
	if err != nil {
		return nil, fmt.Errorf("translating rowid in %s: %w", table, err)
	}
	return normalizeValue(key), nil
}

// fieldType looks up the declared type of a physical field.
func (s *Store) fieldType(table, field string) (types.FieldType, error) {
	fields, err := s.physicalFields(table)
	if err != nil {
		return "", err
	}
	for _, f := range fields {
		if f.Name == field {
			return f.Type, nil
		}
	}
	return "", fmt.Errorf("%w: no field %s.%s", types.ErrSchema, table, field)
}

// convertToken restores the native type of an aggregated value: integer,
// then float, then text.
func convertToken(token string) any {
	if n, err := strconv.ParseInt(token, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(token, 64); err == nil {
		return f
	}
	return token
}
