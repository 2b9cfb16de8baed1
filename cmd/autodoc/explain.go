package main

import (
	"fmt"

	"github.com/spf13/cobra"

	autodoc "github.com/vivaneiona/genkit-autodoc"
)

var explainFormat string

// explainCmd shows how a record would be matched without rendering it
var explainCmd = &cobra.Command{
	Use:   "explain [record.json|-]",
	Short: "Explain template selection and field mapping for a record",
	Long: `Run schema inference, field matching and template selection for a record
and print the ranked template candidates with every field mapping decision.
Nothing is rendered.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		req, err := requestFromFlags(args)
		if err != nil {
			return err
		}
		e, err := buildEnv(ctx, envOptions{})
		if err != nil {
			return err
		}
		defer e.Close()

		a, err := e.gen.Analyze(ctx, req)
		if err != nil {
			return err
		}
		out, err := autodoc.Explain(a.Report(), autodoc.ReportFormat(explainFormat))
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
		return err
	},
}

func init() {
	addRequestFlags(explainCmd)
	explainCmd.Flags().StringVar(&genSource, "source", "", "Record source id (sqlite, postgres, files, xlsx)")
	explainCmd.Flags().StringVar(&genRecord, "record", "", "Record id within --source")
	explainCmd.Flags().StringVar(&explainFormat, "report", "text", "Report format: text or json")
}
