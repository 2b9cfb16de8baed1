package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	autodoc "github.com/vivaneiona/genkit-autodoc"
)

var mcpRender bool

// mcpCmd serves the pipeline as MCP tools over stdio
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve generate_document and list_templates as MCP tools over stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := buildEnv(ctx, envOptions{render: mcpRender})
		if err != nil {
			return err
		}
		defer e.Close()

		server := mcp.NewServer(&mcp.Implementation{Name: "autodoc", Version: "v0.1.0"}, nil)
		tools := &toolset{env: e}
		mcp.AddTool(server, metadataGenerateDocument, tools.generateDocument)
		mcp.AddTool(server, metadataListTemplates, tools.listTemplates)

		logger.Info("mcp server ready", "render", mcpRender)
		return server.Run(ctx, &mcp.StdioTransport{})
	},
}

func init() {
	mcpCmd.Flags().BoolVar(&mcpRender, "render", true, "Start a browser pool for html, pdf and png output")
}

type toolset struct {
	env *env
}

var metadataGenerateDocument = &mcp.Tool{
	Name: "generate_document",
	Description: "Turn a structured record into a rendered document. The template and the " +
		"field mapping are chosen automatically; when confidence is below the threshold the " +
		"result has status needs_confirmation and names the suggested template instead of " +
		"rendering. Output is a data URL (pdf, png, html) or the substituted markup (preview).",
}

type inputGenerateDocument struct {
	Record              map[string]any    `json:"record" jsonschema:"the record to turn into a document"`
	TemplateID          string            `json:"templateIdOverride,omitempty" jsonschema:"use this template instead of selecting one"`
	MappingOverrides    map[string]string `json:"mappingOverrides,omitempty" jsonschema:"template field to record path, applied before matching"`
	OutputFormat        string            `json:"outputFormat,omitempty" jsonschema:"preview, html, pdf or png; default pdf"`
	ConfidenceThreshold float64           `json:"confidenceThreshold,omitempty" jsonschema:"minimum confidence for automatic selection; default 0.8"`
}

type outputGenerateDocument struct {
	Status          string   `json:"status"`
	PayloadOrURL    string   `json:"payloadOrUrl,omitempty"`
	TemplateID      string   `json:"templateId"`
	Confidence      float64  `json:"confidence"`
	Reasoning       string   `json:"reasoning"`
	UnmappedFields  []string `json:"unmappedFields"`
	MappingCoverage float64  `json:"mappingCoverage"`
	DocumentType    string   `json:"documentType"`
}

func (t *toolset) generateDocument(ctx context.Context, _ *mcp.CallToolRequest, in inputGenerateDocument) (*mcp.CallToolResult, outputGenerateDocument, error) {
	if in.Record == nil {
		return nil, outputGenerateDocument{}, fmt.Errorf("record is required")
	}
	format := autodoc.OutputFormat(in.OutputFormat)
	if t.env.pool == nil && (format == "" || format == autodoc.FormatPDF || format == autodoc.FormatPNG) {
		return nil, outputGenerateDocument{}, fmt.Errorf("server started without --render; use outputFormat preview or html")
	}

	res, err := t.env.gen.Generate(ctx, autodoc.Request{
		Record:              in.Record,
		TemplateID:          in.TemplateID,
		MappingOverrides:    in.MappingOverrides,
		OutputFormat:        format,
		ConfidenceThreshold: in.ConfidenceThreshold,
	})
	if err != nil {
		return nil, outputGenerateDocument{}, err
	}

	out := outputGenerateDocument{
		Status:          string(res.Status),
		PayloadOrURL:    res.PayloadOrURL,
		Confidence:      res.Confidence,
		Reasoning:       res.Reasoning,
		UnmappedFields:  res.UnmappedFields,
		MappingCoverage: res.MappingCoverage,
		DocumentType:    res.DocumentType.Type,
	}
	switch {
	case res.TemplateUsed != nil:
		out.TemplateID = res.TemplateUsed.ID
	case res.SuggestedTemplate != nil:
		out.TemplateID = res.SuggestedTemplate.ID
	}
	return nil, out, nil
}

var metadataListTemplates = &mcp.Tool{
	Name:        "list_templates",
	Description: "List the registered document templates and their placeholder fields.",
}

type inputListTemplates struct {
	Category string `json:"category,omitempty" jsonschema:"only list templates of this category"`
}

type templateInfo struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Category string   `json:"category"`
	Fields   []string `json:"fields"`
}

type outputListTemplates struct {
	Templates []templateInfo `json:"templates"`
}

func (t *toolset) listTemplates(ctx context.Context, _ *mcp.CallToolRequest, in inputListTemplates) (*mcp.CallToolResult, outputListTemplates, error) {
	list, err := t.env.registry.List(ctx, in.Category)
	if err != nil {
		return nil, outputListTemplates{}, err
	}
	out := outputListTemplates{Templates: make([]templateInfo, 0, len(list))}
	for _, tpl := range list {
		out.Templates = append(out.Templates, templateInfo{
			ID:       tpl.ID,
			Name:     tpl.Name,
			Category: tpl.Category,
			Fields:   tpl.FieldNames(),
		})
	}
	return nil, out, nil
}
