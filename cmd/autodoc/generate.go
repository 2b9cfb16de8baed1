package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	autodoc "github.com/vivaneiona/genkit-autodoc"
)

var (
	genFormat     string
	genTemplate   string
	genThreshold  float64
	genNoAccept   bool
	genSource     string
	genRecord     string
	genOut        string
	genOverrides  map[string]string
	genTTLSeconds int
)

// generateCmd runs the pipeline for one record
var generateCmd = &cobra.Command{
	Use:   "generate [record.json|-]",
	Short: "Generate one document from a record",
	Long: `Generate one document from a JSON record read from a file or stdin, or
from a configured record source (--source/--record).

The result is printed as JSON. With --out the rendered document is written
to a file instead of being inlined as a data URL.`,
	Example: `  autodoc generate job.json --format pdf --out job.pdf
  autodoc generate --source sqlite --record 42 --format preview
  cat job.json | autodoc generate - --template work_order --map customer_name=client.name`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGenerate,
}

func init() {
	addRequestFlags(generateCmd)
	generateCmd.Flags().StringVar(&genSource, "source", "", "Record source id (sqlite, postgres, files, xlsx)")
	generateCmd.Flags().StringVar(&genRecord, "record", "", "Record id within --source")
	generateCmd.Flags().StringVarP(&genOut, "out", "o", "", "Write the rendered document to this file")
	generateCmd.Flags().IntVar(&genTTLSeconds, "ttl", 0, "Hosted document TTL in seconds (default AUTODOC_HOST_TTL)")
}

// addRequestFlags registers the flags shared by generate and explain.
func addRequestFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&genFormat, "format", "f", "pdf", "Output format: preview, html, pdf, png")
	cmd.Flags().StringVarP(&genTemplate, "template", "t", "", "Template id override")
	cmd.Flags().Float64Var(&genThreshold, "threshold", autodoc.DefaultConfidenceThreshold, "Confidence threshold for auto selection")
	cmd.Flags().BoolVar(&genNoAccept, "confirm", false, "Always stop at needs_confirmation instead of auto accepting")
	cmd.Flags().StringToStringVar(&genOverrides, "map", nil, "Mapping override template_field=source.path (repeatable)")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	req, err := requestFromFlags(args)
	if err != nil {
		return err
	}
	req.TTLSeconds = genTTLSeconds

	e, err := buildEnv(ctx, envOptions{render: needsBrowser(req.OutputFormat)})
	if err != nil {
		return err
	}
	defer e.Close()

	res, err := e.gen.Generate(ctx, req)
	if err != nil {
		return err
	}

	if genOut != "" && res.Status == autodoc.StatusCompleted {
		if err := writeOutput(genOut, res); err != nil {
			return err
		}
		logger.Info("document written", "path", genOut, "template", res.TemplateUsed.ID)
		res.PayloadOrURL = genOut
	}
	return printJSON(cmd.OutOrStdout(), res)
}

// requestFromFlags builds a Request from the positional record argument or
// the --source/--record pair.
func requestFromFlags(args []string) (autodoc.Request, error) {
	format, err := parseFormat(genFormat)
	if err != nil {
		return autodoc.Request{}, err
	}
	accept := !genNoAccept
	req := autodoc.Request{
		TemplateID:          genTemplate,
		MappingOverrides:    genOverrides,
		OutputFormat:        format,
		ConfidenceThreshold: genThreshold,
		AutoAccept:          &accept,
	}

	switch {
	case genSource != "":
		if len(args) > 0 {
			return req, fmt.Errorf("%w: pass either a record file or --source, not both", autodoc.ErrInvalidRequest)
		}
		req.SourceID, req.RecordID = genSource, genRecord
	case len(args) == 1:
		raw, err := readInput(args[0])
		if err != nil {
			return req, err
		}
		req.RawRecord = raw
	default:
		return req, fmt.Errorf("%w: a record file, '-' for stdin, or --source is required", autodoc.ErrInvalidRequest)
	}
	return req, nil
}

func readInput(name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(name)
}

func writeOutput(path string, res *autodoc.Result) error {
	if res.OutputFormat == autodoc.FormatPreview {
		return os.WriteFile(path, []byte(res.PayloadOrURL), 0o644)
	}
	_, data, ok := autodoc.DecodeDataURL(res.PayloadOrURL)
	if !ok {
		return os.WriteFile(path, []byte(res.PayloadOrURL), 0o644)
	}
	return os.WriteFile(path, data, 0o644)
}

// decodeJSON keeps numbers as json.Number so record ids and amounts are
// not rounded through float64.
func decodeJSON(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	return dec.Decode(v)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
