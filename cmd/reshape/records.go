// Record commands: insert, update, delete, query.
package main

import (
	"fmt"

	"github.com/mesh-intelligence/reshape/pkg/types"
	"github.com/spf13/cobra"
)

var insertCmd = &cobra.Command{
	Use:   "insert <table> [key=value...]",
	Short: "Insert a record",
	Long: `Insert a record from key=value pairs. Values parse as JSON when
possible, so link fields take arrays:

  reshape insert tasks title=Groceries priority=2 'tag_links=[1,3]'`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		record, err := parseAssignments(args[1:])
		if err != nil {
			return err
		}

		store, err := attachStore()
		if err != nil {
			return err
		}
		defer store.Detach()

		key, err := store.InsertRecord(args[0], record, true)
		if err != nil {
			return fmt.Errorf("insert record: %w", err)
		}

		if flagJSON {
			return printJSON(map[string]any{"key": key})
		}
		fmt.Printf("Inserted record %d into %s\n", key, args[0])
		return nil
	},
}

var updateCmd = &cobra.Command{
	Use:   "update <table> <key> [key=value...]",
	Short: "Update a record by key",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		record, err := parseAssignments(args[2:])
		if err != nil {
			return err
		}

		keyField, _ := cmd.Flags().GetString("key-field")

		store, err := attachStore()
		if err != nil {
			return err
		}
		defer store.Detach()

		if err := store.UpdateRecord(args[0], record, parseKey(args[1]), keyField, true); err != nil {
			return fmt.Errorf("update record: %w", err)
		}

		fmt.Printf("Updated %s record %s\n", args[0], args[1])
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <table> <key>...",
	Short: "Delete records by key",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		keyField, _ := cmd.Flags().GetString("key-field")

		store, err := attachStore()
		if err != nil {
			return err
		}
		defer store.Detach()

		if len(args) == 2 {
			// Single delete also clears junction rows for the record.
			if err := store.DeleteRecord(args[0], parseKey(args[1]), keyField); err != nil {
				return fmt.Errorf("delete record: %w", err)
			}
			fmt.Printf("Deleted %s record %s\n", args[0], args[1])
			return nil
		}

		keys := make([]any, 0, len(args)-1)
		for _, arg := range args[1:] {
			keys = append(keys, parseKey(arg))
		}
		if err := store.DeleteRecords(args[0], keys, keyField); err != nil {
			return fmt.Errorf("delete records: %w", err)
		}
		fmt.Printf("Deleted %d records from %s\n", len(keys), args[0])
		return nil
	},
}

var queryCmd = &cobra.Command{
	Use:   "query <table>",
	Short: "Query rows from a table",
	Long: `Query rows from a table. --where takes a raw SQL condition with ?
placeholders bound from --arg values. --links hydrates many-to-many fields.

Example:
  reshape query tasks --fields id,title --where "priority > ?" --arg 1 --links`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := types.QueryOptions{AsDict: true}
		opts.Fields, _ = cmd.Flags().GetStringSlice("fields")
		opts.Where, _ = cmd.Flags().GetString("where")
		opts.HandleM2M, _ = cmd.Flags().GetBool("links")

		rawArgs, _ := cmd.Flags().GetStringArray("arg")
		for _, arg := range rawArgs {
			opts.Args = append(opts.Args, parseValue(arg))
		}

		store, err := attachStore()
		if err != nil {
			return err
		}
		defer store.Detach()

		cursor, err := store.QueryTableData(args[0], opts)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}

		rows, err := collectRows(cursor)
		if err != nil {
			return err
		}
		return printJSON(rows)
	},
}

func init() {
	updateCmd.Flags().String("key-field", "", "field the key matches (default: rowid)")
	deleteCmd.Flags().String("key-field", "", "field the keys match (default: primary key for one key, rowid for several)")

	queryCmd.Flags().StringSlice("fields", nil, "fields to select (default: all)")
	queryCmd.Flags().String("where", "", "raw SQL condition with ? placeholders")
	queryCmd.Flags().StringArray("arg", nil, "bound argument for --where (repeatable)")
	queryCmd.Flags().Bool("links", false, "hydrate many-to-many fields")
}
