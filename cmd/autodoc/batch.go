package main

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	autodoc "github.com/vivaneiona/genkit-autodoc"
)

var batchConcurrency int

// batchCmd runs the pipeline over many records
var batchCmd = &cobra.Command{
	Use:   "batch <batch.json|->",
	Short: "Generate documents for a batch of requests",
	Long: `Generate documents for every item of a batch file shaped as
{"items": [<request>, ...], "maxConcurrency": N}. A bare JSON array of
records is accepted too; each record then becomes one item using --format.

Failed items do not stop the batch. The command fails only when every item
failed.`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().StringVarP(&genFormat, "format", "f", "pdf", "Output format for bare record arrays")
	batchCmd.Flags().IntVarP(&batchConcurrency, "concurrency", "c", 0, "Maximum items in flight (default AUTODOC_BATCH_CONCURRENCY)")
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	raw, err := readInput(args[0])
	if err != nil {
		return err
	}
	req, err := parseBatch(raw)
	if err != nil {
		return err
	}
	if batchConcurrency > 0 {
		req.MaxConcurrency = batchConcurrency
	}

	render := false
	for _, it := range req.Items {
		render = render || needsBrowser(it.OutputFormat)
	}
	e, err := buildEnv(ctx, envOptions{render: render})
	if err != nil {
		return err
	}
	defer e.Close()

	res, err := e.gen.RunBatch(ctx, req)
	if err != nil {
		return err
	}
	if err := printJSON(cmd.OutOrStdout(), res); err != nil {
		return err
	}
	if len(req.Items) > 0 && res.SuccessCount == 0 {
		return fmt.Errorf("all %d batch items failed", res.FailCount)
	}
	return nil
}

func parseBatch(raw []byte) (autodoc.BatchRequest, error) {
	var req autodoc.BatchRequest
	if err := decodeJSON(bytes.NewReader(raw), &req); err == nil && req.Items != nil {
		return req, nil
	}

	var records []json.RawMessage
	if err := json.Unmarshal(raw, &records); err != nil {
		return req, fmt.Errorf("%w: batch must be {\"items\": [...]} or an array of records", autodoc.ErrInvalidRequest)
	}
	format, err := parseFormat(genFormat)
	if err != nil {
		return req, err
	}
	req.Items = make([]autodoc.Request, len(records))
	for i, r := range records {
		req.Items[i] = autodoc.Request{RawRecord: r, OutputFormat: format}
	}
	return req, nil
}
