// Link commands manage many-to-many relationships between tables.
package main

import (
	"fmt"

	"github.com/mesh-intelligence/reshape/pkg/types"
	"github.com/spf13/cobra"
)

var linkCmd = &cobra.Command{
	Use:   "link",
	Short: "Manage many-to-many links between tables",
}

var linkCreateCmd = &cobra.Command{
	Use:   "create <from-table> <to-table>",
	Short: "Create a junction table linking two tables",
	Long: `Create a junction table linking two tables and register the tracking
field on the from side. Field names default to the primary keys and the
tracking field defaults to <to-table>_link.

Example:
  reshape link create tasks tags --track tag_links --both-ways`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := types.JunctionOptions{}
		opts.FromField, _ = cmd.Flags().GetString("from-field")
		opts.ToField, _ = cmd.Flags().GetString("to-field")
		opts.JunctionName, _ = cmd.Flags().GetString("junction")
		opts.TrackField, _ = cmd.Flags().GetString("track")
		opts.ReverseTrackField, _ = cmd.Flags().GetString("reverse-track")
		opts.DisplayField, _ = cmd.Flags().GetString("display")
		opts.ReverseDisplayField, _ = cmd.Flags().GetString("reverse-display")
		opts.TrackViceVersa, _ = cmd.Flags().GetBool("both-ways")

		store, err := attachStore()
		if err != nil {
			return err
		}
		defer store.Detach()

		junction, err := store.CreateJunctionTable(args[0], args[1], opts)
		if err != nil {
			return fmt.Errorf("create link: %w", err)
		}

		fmt.Printf("Created junction table %s\n", junction)
		return nil
	},
}

var linkSetCmd = &cobra.Command{
	Use:   "set <table> <track-field> <key> [related-key...]",
	Short: "Replace the linked set for one record",
	Long: `Replace the linked set for one record. The given related keys become
the complete set; omitting them clears the link.

Example:
  reshape link set tasks tag_links 7 1 2 5`,
	Args: cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		selected := make([]any, 0, len(args)-3)
		for _, arg := range args[3:] {
			selected = append(selected, parseKey(arg))
		}

		store, err := attachStore()
		if err != nil {
			return err
		}
		defer store.Detach()

		if err := store.UpdateJunctionTable(args[0], args[1], parseKey(args[2]), selected, false); err != nil {
			return fmt.Errorf("set link: %w", err)
		}

		fmt.Printf("Linked %s[%s] to %d record(s)\n", args[0], args[2], len(selected))
		return nil
	},
}

var linkShowCmd = &cobra.Command{
	Use:   "show <table> <track-field> [key...]",
	Short: "Show linked values, optionally restricted to specific keys",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := types.RelatedOptions{}
		opts.DisplayField, _ = cmd.Flags().GetString("display")
		for _, arg := range args[2:] {
			opts.FromValues = append(opts.FromValues, parseKey(arg))
		}

		store, err := attachStore()
		if err != nil {
			return err
		}
		defer store.Detach()

		rows, err := store.GetManyToManyData(args[0], args[1], opts)
		if err != nil {
			return fmt.Errorf("show link: %w", err)
		}

		return printJSON(rows)
	},
}

func init() {
	linkCreateCmd.Flags().String("from-field", "", "key field on the from side (default: primary key)")
	linkCreateCmd.Flags().String("to-field", "", "key field on the to side (default: primary key)")
	linkCreateCmd.Flags().String("junction", "", "junction table name (default: sorted table names joined by _)")
	linkCreateCmd.Flags().String("track", "", "tracking field name on the from side (default: <to-table>_link)")
	linkCreateCmd.Flags().String("reverse-track", "", "tracking field name on the to side (with --both-ways)")
	linkCreateCmd.Flags().String("display", "", "display field shown for linked records")
	linkCreateCmd.Flags().String("reverse-display", "", "display field for the reverse direction")
	linkCreateCmd.Flags().Bool("both-ways", false, "also register the reverse tracking field")

	linkShowCmd.Flags().String("display", "", "field of the related table to show (default: registered display field)")

	linkCmd.AddCommand(linkCreateCmd)
	linkCmd.AddCommand(linkSetCmd)
	linkCmd.AddCommand(linkShowCmd)
}
