// Schema mutation commands: create-table, drop-table, add-field, drop-field.
package main

import (
	"fmt"

	"github.com/mesh-intelligence/reshape/pkg/types"
	"github.com/spf13/cobra"
)

var createTableCmd = &cobra.Command{
	Use:   "create-table <table> <field-spec>...",
	Short: "Create a table from field specs",
	Long: `Create a table from one or more field specs of the form
name:type[:modifiers]. Modifiers are pk, notnull, unique and default=<value>.

Example:
  reshape create-table tasks id:INTEGER:pk title:TEXT:notnull priority:INTEGER:default=0`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		fields := make([]types.Field, 0, len(args)-1)
		for _, spec := range args[1:] {
			field, err := parseFieldSpec(spec)
			if err != nil {
				return err
			}
			fields = append(fields, field)
		}

		store, err := attachStore()
		if err != nil {
			return err
		}
		defer store.Detach()

		if err := store.CreateTable(args[0], fields); err != nil {
			return fmt.Errorf("create table: %w", err)
		}

		fmt.Printf("Created table %s\n", args[0])
		return nil
	},
}

var dropTableCmd = &cobra.Command{
	Use:   "drop-table <table>",
	Short: "Drop a table and its catalog metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := attachStore()
		if err != nil {
			return err
		}
		defer store.Detach()

		if err := store.DeleteTable(args[0]); err != nil {
			return fmt.Errorf("drop table: %w", err)
		}

		fmt.Printf("Dropped table %s\n", args[0])
		return nil
	},
}

var addFieldCmd = &cobra.Command{
	Use:   "add-field <table> <field-spec>",
	Short: "Add a field to an existing table",
	Long: `Add a field to an existing table, rebuilding the table in place.
Use --enum-values to back the new field with an enum table.

Example:
  reshape add-field tasks status:TEXT --enum-values Pending,Active,Done`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		field, err := parseFieldSpec(args[1])
		if err != nil {
			return err
		}

		enumValues, _ := cmd.Flags().GetStringSlice("enum-values")
		if len(enumValues) > 0 {
			field.Enum = &types.EnumSpec{Values: enumValues}
		}

		store, err := attachStore()
		if err != nil {
			return err
		}
		defer store.Detach()

		if err := store.AddField(args[0], field); err != nil {
			return fmt.Errorf("add field: %w", err)
		}

		fmt.Printf("Added field %s to %s\n", field.Name, args[0])
		return nil
	},
}

var dropFieldCmd = &cobra.Command{
	Use:   "drop-field <table> <field>",
	Short: "Remove a field from a table",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := attachStore()
		if err != nil {
			return err
		}
		defer store.Detach()

		if err := store.DeleteField(args[0], args[1]); err != nil {
			return fmt.Errorf("drop field: %w", err)
		}

		fmt.Printf("Dropped field %s from %s\n", args[1], args[0])
		return nil
	},
}

func init() {
	addFieldCmd.Flags().StringSlice("enum-values", nil, "back the field with an enum table seeded with these values")
}
