// Schema inspection commands: tables, fields, size.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List user tables (and views with --views)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := attachStore()
		if err != nil {
			return err
		}
		defer store.Detach()

		names, err := store.GetTableNames()
		if err != nil {
			return fmt.Errorf("list tables: %w", err)
		}

		showViews, _ := cmd.Flags().GetBool("views")
		var views []string
		if showViews {
			views, err = store.GetViewNames()
			if err != nil {
				return fmt.Errorf("list views: %w", err)
			}
		}

		if flagJSON {
			out := map[string]any{"tables": names}
			if showViews {
				out["views"] = views
			}
			return printJSON(out)
		}

		for _, name := range names {
			fmt.Println(name)
		}
		for _, name := range views {
			fmt.Println(name, "(view)")
		}
		return nil
	},
}

var fieldsCmd = &cobra.Command{
	Use:   "fields <table>",
	Short: "Describe the fields of a table, including enum and link fields",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := attachStore()
		if err != nil {
			return err
		}
		defer store.Detach()

		fields, err := store.GetFields(args[0])
		if err != nil {
			return fmt.Errorf("get fields: %w", err)
		}

		if flagJSON {
			return printJSON(fields)
		}

		for _, f := range fields {
			line := fmt.Sprintf("%s %s", f.Name, f.Type)
			if f.PrimaryKey {
				line += " pk"
			}
			if f.NotNull {
				line += " notnull"
			}
			if f.Unique {
				line += " unique"
			}
			if f.Default != nil {
				line += fmt.Sprintf(" default=%v", f.Default)
			}
			if f.Enum != nil {
				line += fmt.Sprintf(" enum=%s", f.Enum.Table)
			}
			if f.ManyToMany != nil {
				line += fmt.Sprintf(" link=%s", f.ManyToMany.Table)
			}
			fmt.Println(line)
		}
		return nil
	},
}

var sizeCmd = &cobra.Command{
	Use:   "size",
	Short: "Print the database file size in bytes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := attachStore()
		if err != nil {
			return err
		}
		defer store.Detach()

		size, err := store.GetDatabaseSize()
		if err != nil {
			return fmt.Errorf("database size: %w", err)
		}

		if flagJSON {
			return printJSON(map[string]any{"bytes": size})
		}
		fmt.Println(size)
		return nil
	},
}

func init() {
	tablesCmd.Flags().Bool("views", false, "include views in the listing")
}
