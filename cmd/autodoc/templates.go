package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var templatesCategory string

// templatesCmd inspects the template registry
var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List templates or print a template's JSON schema",
}

var templatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered templates",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		reg, err := loadRegistry()
		if err != nil {
			return err
		}
		list, err := reg.List(ctx, templatesCategory)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCATEGORY\tFIELDS\tNAME")
		for _, t := range list {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", t.ID, t.Category, len(t.Fields), t.Name)
		}
		return w.Flush()
	},
}

var templatesSchemaCmd = &cobra.Command{
	Use:   "schema <template-id>",
	Short: "Print the JSON schema of a template's placeholders",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		reg, err := loadRegistry()
		if err != nil {
			return err
		}
		t, err := reg.Get(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), t.JSONSchema())
	},
}

func init() {
	templatesListCmd.Flags().StringVar(&templatesCategory, "category", "", "Only list templates of this category")
	templatesCmd.AddCommand(templatesListCmd)
	templatesCmd.AddCommand(templatesSchemaCmd)
}
