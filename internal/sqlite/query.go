package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/reshape/internal/ident"
	"github.com/mesh-intelligence/reshape/pkg/types"
)

// Query engine. Plain selects stream through a lazy single-pass cursor.
// Hydrating selects cannot: the handle admits one open result set at a time,
// so relation queries would block behind the base select forever. Those
// queries drain the base rows first, then resolve every track field in one
// relation query per track, and serve the result from memory.

// cursor implements types.Cursor lazily over sql.Rows.
type cursor struct {
	table  string
	rows   *sql.Rows
	cols   []string
	asDict bool

	current types.Row
	values  []any
	err     error
}

// bufferedCursor implements types.Cursor over rows already drained into
// memory. Hydrating queries return it.
type bufferedCursor struct {
	values [][]any
	dicts  []types.Row
	idx    int
}

// QueryTableData selects rows from a table. Fields nil selects every
// physical field; Where is appended with Args bound as values. With
// HandleM2M, each row is augmented per declared track field; the table's
// primary key must then be among the selected fields.
func (s *Store) QueryTableData(table string, opts types.QueryOptions) (types.Cursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureAttached(); err != nil {
		return nil, err
	}
	if err := ident.Validate(table); err != nil {
		return nil, err
	}

	physical, err := s.physicalFields(table)
	if err != nil {
		return nil, err
	}

	selected := opts.Fields
	if selected == nil {
		selected = fieldNames(physical)
	} else {
		if err := ident.ValidateAll(selected...); err != nil {
			return nil, err
		}
	}

	var tracks []string
	pkIdx := -1
	if opts.HandleM2M {
		tracks, err = s.getManyToManyFields(table)
		if err != nil {
			return nil, err
		}
		pkName := ""
		for _, f := range physical {
			if f.PrimaryKey {
				pkName = f.Name
				break
			}
		}
		if pkName == "" {
			pkName = "rowid"
		}
		for i, col := range selected {
			if col == pkName {
				pkIdx = i
				break
			}
		}
		if len(tracks) > 0 && pkIdx < 0 {
			return nil, fmt.Errorf("%w: relation hydration needs %s among the selected fields",
				types.ErrValidation, pkName)
		}
	}

	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(selected, ", "), table)
	if opts.Where != "" {
		query += " WHERE " + opts.Where
	}

	rows, err := s.db.Query(query, opts.Args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", table, err)
	}

	if len(tracks) == 0 {
		return &cursor{
			table:  table,
			rows:   rows,
			cols:   selected,
			asDict: opts.AsDict,
		}, nil
	}
	return s.hydrateRows(rows, table, selected, tracks, pkIdx, opts.AsDict)
}

// hydrateRows drains the base select, releasing the connection, then
// resolves every track field for all anchors at once and attaches the
// results. One relation query per track field, regardless of row count.
func (s *Store) hydrateRows(rows *sql.Rows, table string, cols, tracks []string, pkIdx int, asDict bool) (types.Cursor, error) {
	defer rows.Close()

	var base [][]any
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row of %s: %w", table, err)
		}
		for i := range raw {
			raw[i] = normalizeValue(raw[i])
		}
		base = append(base, raw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading rows of %s: %w", table, err)
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("closing rows of %s: %w", table, err)
	}

	linked := make(map[string]map[any]any, len(tracks))
	if len(base) > 0 {
		keys := make([]any, len(base))
		for i, row := range base {
			keys[i] = row[pkIdx]
		}
		for _, track := range tracks {
			data, err := s.getManyToManyData(table, track, types.RelatedOptions{FromValues: keys})
			if err != nil {
				return nil, err
			}
			byAnchor := make(map[any]any, len(data))
			for _, row := range data {
				byAnchor[anchorOf(row, track)] = row[track]
			}
			linked[track] = byAnchor
		}
	}

	out := &bufferedCursor{values: make([][]any, len(base))}
	if asDict {
		out.dicts = make([]types.Row, len(base))
	}
	for i, raw := range base {
		vals := raw
		var dict types.Row
		if asDict {
			dict = make(types.Row, len(cols)+len(tracks))
			for j, col := range cols {
				dict[col] = raw[j]
			}
		}
		for _, track := range tracks {
			var value any = []any{}
			if resolved, ok := linked[track][raw[pkIdx]]; ok {
				value = resolved
			}
			if asDict {
				dict[track] = value
			} else {
				vals = append(vals, value)
			}
		}
		out.values[i] = vals
		if asDict {
			out.dicts[i] = dict
		}
	}
	return out, nil
}

// anchorOf extracts the anchor key from a relation row, which carries
// exactly two entries: the anchor key and the track label.
func anchorOf(row types.Row, track string) any {
	for key, value := range row {
		if key != track {
			return value
		}
	}
	return nil
}

// Next advances to the next row.
func (c *cursor) Next() bool {
	if c.err != nil || !c.rows.Next() {
		return false
	}

	raw := make([]any, len(c.cols))
	ptrs := make([]any, len(c.cols))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := c.rows.Scan(ptrs...); err != nil {
		c.err = fmt.Errorf("scanning row of %s: %w", c.table, err)
		return false
	}
	for i := range raw {
		raw[i] = normalizeValue(raw[i])
	}
	c.values = raw

	if c.asDict {
		row := make(types.Row, len(c.cols))
		for i, col := range c.cols {
			row[col] = raw[i]
		}
		c.current = row
	} else {
		c.current = nil
	}
	return true
}

// Row returns the current row in dictionary mode, nil otherwise.
func (c *cursor) Row() types.Row { return c.current }

// Values returns the current row in selected-field order.
func (c *cursor) Values() []any { return c.values }

// Err returns the first error encountered during iteration.
func (c *cursor) Err() error {
	if c.err != nil {
		return c.err
	}
	return c.rows.Err()
}

// Close releases the underlying result set.
func (c *cursor) Close() error { return c.rows.Close() }

func (c *bufferedCursor) Next() bool {
	if c.idx >= len(c.values) {
		return false
	}
	c.idx++
	return true
}

// Row returns the current row in dictionary mode, nil otherwise.
func (c *bufferedCursor) Row() types.Row {
	if c.dicts == nil {
		return nil
	}
	return c.dicts[c.idx-1]
}

// Values returns the current row in selected-field order, hydrated relation
// values appended.
func (c *bufferedCursor) Values() []any { return c.values[c.idx-1] }

func (c *bufferedCursor) Err() error { return nil }

func (c *bufferedCursor) Close() error { return nil }

// FetchRelatedValue is a single-row point lookup across a foreign key:
// the value of targetField on relatedTable where referenceField equals
// keyValue. Absence of the row, or of the table itself, is reported as a
// nil value, not an error.
func (s *Store) FetchRelatedValue(relatedTable, targetField, referenceField string, keyValue any) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureAttached(); err != nil {
		return nil, err
	}
	if err := ident.ValidateAll(relatedTable, targetField, referenceField); err != nil {
		return nil, err
	}
	exists, err := s.tableExists(relatedTable)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}

	var value any
	err = s.db.QueryRow(fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = ? LIMIT 1", targetField, relatedTable, referenceField),
		keyValue).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching related value from %s: %w", relatedTable, err)
	}
	return normalizeValue(value), nil
}

// normalizeValue converts driver byte slices to strings so row values
// compare and print predictably.
func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
