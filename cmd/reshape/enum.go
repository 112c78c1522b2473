// Enum commands: create enum tables, attach them to fields, list values.
package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var enumCmd = &cobra.Command{
	Use:   "enum",
	Short: "Manage enum tables",
}

var enumCreateCmd = &cobra.Command{
	Use:   "create <enum-table> <value>...",
	Short: "Create an enum table seeded with values",
	Long: `Create an enum table seeded with values. Re-running with new values
merges them into the existing table; duplicates are ignored.

Example:
  reshape enum create enum_status Pending Active Done`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := attachStore()
		if err != nil {
			return err
		}
		defer store.Detach()

		if err := store.CreateEnumTable(args[0], args[1:]); err != nil {
			return fmt.Errorf("create enum table: %w", err)
		}

		fmt.Printf("Created enum table %s (%d values)\n", args[0], len(args[1:]))
		return nil
	},
}

var enumBindCmd = &cobra.Command{
	Use:   "bind <table> <field> <enum-table>",
	Short: "Record that a field draws its values from an enum table",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		description, _ := cmd.Flags().GetString("description")

		store, err := attachStore()
		if err != nil {
			return err
		}
		defer store.Detach()

		if err := store.AddEnumMetadata(args[0], args[1], args[2], description); err != nil {
			return fmt.Errorf("bind enum: %w", err)
		}

		fmt.Printf("Bound %s.%s to %s\n", args[0], args[1], args[2])
		return nil
	},
}

var enumValuesCmd = &cobra.Command{
	Use:   "values <enum-table>",
	Short: "List the values of an enum table in insertion order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := attachStore()
		if err != nil {
			return err
		}
		defer store.Detach()

		values, err := store.GetEnumValues(args[0])
		if err != nil {
			return fmt.Errorf("enum values: %w", err)
		}

		if flagJSON {
			return printJSON(values)
		}
		fmt.Println(strings.Join(values, "\n"))
		return nil
	},
}

var enumListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enum tables",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := attachStore()
		if err != nil {
			return err
		}
		defer store.Detach()

		names, err := store.ListEnumTables()
		if err != nil {
			return fmt.Errorf("list enum tables: %w", err)
		}

		if flagJSON {
			return printJSON(names)
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	},
}

func init() {
	enumBindCmd.Flags().String("description", "", "human-readable note stored with the binding")

	enumCmd.AddCommand(enumCreateCmd)
	enumCmd.AddCommand(enumBindCmd)
	enumCmd.AddCommand(enumValuesCmd)
	enumCmd.AddCommand(enumListCmd)
}
