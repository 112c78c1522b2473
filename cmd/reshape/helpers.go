// Shared helpers for reshape CLI commands.
package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mesh-intelligence/reshape/internal/sqlite"
	"github.com/mesh-intelligence/reshape/pkg/types"
)

// attachStore resolves the data directory, creates a SQLite store, and
// attaches it. The caller must defer store.Detach().
func attachStore() (*sqlite.Store, error) {
	dataDir, err := resolveDataDir()
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}

	cfg := types.Config{
		Backend: types.BackendSQLite,
		DataDir: dataDir,
	}

	store := sqlite.NewStore()
	if err := store.Attach(cfg); err != nil {
		return nil, fmt.Errorf("attach store: %w", err)
	}

	return store, nil
}

// parseFieldSpec parses a column specification of the form
// name:type[:modifier,...]. Recognized modifiers are pk, notnull, unique
// and default=<value>.
func parseFieldSpec(spec string) (types.Field, error) {
	parts := strings.SplitN(spec, ":", 3)
	if len(parts) < 2 {
		return types.Field{}, fmt.Errorf("invalid field spec %q (expected name:type[:modifiers])", spec)
	}

	field := types.Field{
		Name: parts[0],
		Type: types.FieldType(strings.ToUpper(parts[1])),
	}
	if !types.IsValidFieldType(field.Type) {
		return types.Field{}, fmt.Errorf("invalid field type %q in %q", parts[1], spec)
	}

	if len(parts) == 3 {
		for _, mod := range strings.Split(parts[2], ",") {
			switch {
			case mod == "pk":
				field.PrimaryKey = true
			case mod == "notnull":
				field.NotNull = true
			case mod == "unique":
				field.Unique = true
			case strings.HasPrefix(mod, "default="):
				field.Default = parseValue(strings.TrimPrefix(mod, "default="))
			default:
				return types.Field{}, fmt.Errorf("unknown field modifier %q in %q", mod, spec)
			}
		}
	}

	return field, nil
}

// parseAssignments parses key=value arguments into a record map. Values are
// parsed as JSON when possible so numbers, booleans, null and arrays come
// through typed; anything else stays a string.
func parseAssignments(args []string) (map[string]any, error) {
	record := make(map[string]any, len(args))
	for _, arg := range args {
		parts := strings.SplitN(arg, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid assignment %q (expected key=value)", arg)
		}
		record[parts[0]] = parseValue(parts[1])
	}
	return record, nil
}

// parseValue interprets a CLI value string as JSON when it parses, falling
// back to the raw string.
func parseValue(s string) any {
	var parsed any
	if err := json.Unmarshal([]byte(s), &parsed); err != nil {
		return s
	}
	return parsed
}

// parseKey converts a record key argument to int64 when it looks numeric so
// key comparisons match INTEGER primary keys.
func parseKey(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return s
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

// collectRows drains a cursor into a slice of row maps.
func collectRows(cursor types.Cursor) ([]types.Row, error) {
	defer cursor.Close()

	var rows []types.Row
	for cursor.Next() {
		rows = append(rows, cursor.Row())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return rows, nil
}
