package autodoc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"google.golang.org/genai"
)

// GenerateBytes generates bytes using the Gemini API via Google GenAI
func GenerateBytes(ctx context.Context, client *genai.Client, log *slog.Logger, opts ...GenerateOption) ([]byte, error) {
	var cfg generateConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	if client == nil {
		return nil, fmt.Errorf("client not initialized")
	}
	if cfg.Prompt == "" {
		return nil, fmt.Errorf("no valid content provided")
	}

	modelName := cfg.ModelName
	if modelName == "" {
		modelName = "gemini-2.0-flash"
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{genai.NewPartFromText(cfg.Prompt)}, genai.RoleUser),
	}

	// Create generation config for JSON output
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}
	if err := applyParameters(config, cfg.Parameters); err != nil {
		return nil, err
	}

	log.Debug("Generating content", "model", modelName, "prompt_length", len(cfg.Prompt))
	resp, err := client.Models.GenerateContent(ctx, modelName, contents, config)
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates in response")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return nil, fmt.Errorf("no parts in candidate content")
	}
	part := candidate.Content.Parts[0]
	if part.Text == "" {
		return nil, fmt.Errorf("no text in first part of response")
	}

	log.Debug("Generated content successfully", "response_length", len(part.Text))
	return []byte(part.Text), nil
}

// applyParameters copies sampling parameters onto the request config.
func applyParameters(config *genai.GenerateContentConfig, params map[string]string) error {
	if temp, exists := params["temperature"]; exists {
		tempFloat, err := strconv.ParseFloat(temp, 32)
		if err != nil {
			return fmt.Errorf("invalid temperature parameter '%s': %w", temp, err)
		}
		if tempFloat < 0 || tempFloat > 1 {
			return fmt.Errorf("temperature parameter '%v' must be between 0.0 and 1.0", tempFloat)
		}
		val := float32(tempFloat)
		config.Temperature = &val
	}
	if topK, exists := params["topK"]; exists {
		topKFloat, err := strconv.ParseFloat(topK, 32)
		if err != nil {
			return fmt.Errorf("invalid topK parameter '%s': %w", topK, err)
		}
		if topKFloat <= 0 {
			return fmt.Errorf("topK parameter '%v' must be greater than 0", topKFloat)
		}
		val := float32(topKFloat)
		config.TopK = &val
	}
	if topP, exists := params["topP"]; exists {
		topPFloat, err := strconv.ParseFloat(topP, 32)
		if err != nil {
			return fmt.Errorf("invalid topP parameter '%s': %w", topP, err)
		}
		if topPFloat < 0 || topPFloat > 1 {
			return fmt.Errorf("topP parameter '%v' must be between 0.0 and 1.0", topPFloat)
		}
		val := float32(topPFloat)
		config.TopP = &val
	}
	if maxOutputTokens, exists := params["maxOutputTokens"]; exists {
		maxTokensInt, err := strconv.Atoi(maxOutputTokens)
		if err != nil {
			return fmt.Errorf("invalid maxOutputTokens parameter '%s': %w", maxOutputTokens, err)
		}
		if maxTokensInt <= 0 {
			return fmt.Errorf("maxOutputTokens parameter '%d' must be greater than 0", maxTokensInt)
		}
		config.MaxOutputTokens = int32(maxTokensInt)
	}
	return nil
}

// genaiInvoker implements the Invoker interface using Google GenAI
type genaiInvoker struct {
	client *genai.Client
	params map[string]string
	log    *slog.Logger
}

func (gv *genaiInvoker) Generate(ctx context.Context, model Model, prompt string) ([]byte, error) {
	return GenerateBytes(ctx, gv.client, gv.log,
		WithModelName(string(model)),
		WithPrompt(prompt),
		WithParameters(gv.params),
	)
}

// OracleConfig tunes GenAIOracle.
type OracleConfig struct {
	Model      string
	Parameters map[string]string
	MaxRetries int
	Backoff    time.Duration
	Prompts    ContextualPromptProvider // nil uses the embedded prompts
	Logger     *slog.Logger
}

// GenAIOracle answers oracle questions with a Gemini model. Every failure
// is reported as ErrOracleUnavailable.
type GenAIOracle struct {
	invoker    Invoker
	prompts    ContextualPromptProvider
	model      Model
	maxRetries int
	backoff    time.Duration
	log        *slog.Logger

	docSchema *jsonschema.Schema
	mapSchema *jsonschema.Schema
}

// NewGenAIOracle wires a Gemini client as the oracle.
func NewGenAIOracle(client *genai.Client, cfg OracleConfig) (*GenAIOracle, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return NewOracleWithInvoker(&genaiInvoker{client: client, params: cfg.Parameters, log: log}, cfg)
}

// NewOracleWithInvoker builds the oracle on any Invoker.
func NewOracleWithInvoker(inv Invoker, cfg OracleConfig) (*GenAIOracle, error) {
	o := &GenAIOracle{
		invoker:    inv,
		prompts:    cfg.Prompts,
		model:      Model(cfg.Model),
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
		log:        cfg.Logger,
	}
	if o.log == nil {
		o.log = slog.Default()
	}
	if o.model == "" {
		o.model = "gemini-2.0-flash"
	}
	if o.backoff <= 0 {
		o.backoff = 200 * time.Millisecond
	}
	if o.prompts == nil {
		p, err := DefaultPromptProvider()
		if err != nil {
			return nil, fmt.Errorf("oracle prompts: %w", err)
		}
		o.prompts = p
	}
	var err error
	if o.docSchema, err = compileJSONSchema("document_type.json", documentTypeAnswerSchema); err != nil {
		return nil, err
	}
	if o.mapSchema, err = compileJSONSchema("field_mapping.json", mappingAnswerSchema); err != nil {
		return nil, err
	}
	return o, nil
}

var documentTypeAnswerSchema = map[string]any{
	"type":     "object",
	"required": []string{"type", "confidence"},
	"properties": map[string]any{
		"type":       map[string]any{"type": "string", "minLength": 1},
		"confidence": map[string]any{"type": "number"},
		"reasoning":  map[string]any{"type": "string"},
	},
}

var mappingAnswerSchema = map[string]any{
	"type":     "object",
	"required": []string{"mappings"},
	"properties": map[string]any{
		"mappings": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []string{"templateField", "sourceFieldPath", "confidence"},
				"properties": map[string]any{
					"templateField":   map[string]any{"type": "string"},
					"sourceFieldPath": map[string]any{"type": "string"},
					"confidence":      map[string]any{"type": "number"},
					"reasoning":       map[string]any{"type": "string"},
				},
			},
		},
	},
}

// GuessDocumentType implements Oracle.
func (o *GenAIOracle) GuessDocumentType(ctx context.Context, req DocumentTypeRequest) (DocumentTypeGuess, error) {
	prompt, err := o.prompts.GetPromptWithContext(PromptDocumentType, 1, map[string]any{
		"taxonomy":  strings.Join(req.Taxonomy, ", "),
		"heuristic": formatScores(req.Heuristic),
		"fields":    formatFields(req.Fields),
	})
	if err != nil {
		return DocumentTypeGuess{}, fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
	}

	raw, err := o.call(ctx, prompt, o.docSchema)
	if err != nil {
		return DocumentTypeGuess{}, err
	}
	var answer DocumentTypeGuess
	if err := json.Unmarshal(raw, &answer); err != nil {
		return DocumentTypeGuess{}, fmt.Errorf("%w: decode answer: %v", ErrOracleUnavailable, err)
	}
	return answer, nil
}

// SuggestMappings implements Oracle.
func (o *GenAIOracle) SuggestMappings(ctx context.Context, req MappingRequest) ([]MappingSuggestion, error) {
	var unresolved strings.Builder
	for _, f := range req.Unresolved {
		fmt.Fprintf(&unresolved, "- %s (%s", f.Name, f.Type)
		if f.Required {
			unresolved.WriteString(", required")
		}
		unresolved.WriteString(")")
		if f.Description != "" {
			unresolved.WriteString(": " + f.Description)
		}
		unresolved.WriteString("\n")
	}
	prompt, err := o.prompts.GetPromptWithContext(PromptFieldMapping, 1, map[string]any{
		"template_id": req.TemplateID,
		"unresolved":  unresolved.String(),
		"fields":      formatFields(req.Fields),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
	}

	raw, err := o.call(ctx, prompt, o.mapSchema)
	if err != nil {
		return nil, err
	}
	var answer struct {
		Mappings []MappingSuggestion `json:"mappings"`
	}
	if err := json.Unmarshal(raw, &answer); err != nil {
		return nil, fmt.Errorf("%w: decode answer: %v", ErrOracleUnavailable, err)
	}
	return answer.Mappings, nil
}

// call invokes the model with retries and validates the JSON it returns.
func (o *GenAIOracle) call(ctx context.Context, prompt string, schema *jsonschema.Schema) ([]byte, error) {
	var result []byte
	err := retryable(ctx, func() error {
		raw, err := o.invoker.Generate(ctx, o.model, prompt)
		if err != nil {
			return err
		}
		clean := SanitizeJSONResponse(raw)
		if err := validateJSON(schema, clean); err != nil {
			return err
		}
		result = clean
		return nil
	}, o.maxRetries, o.backoff, o.log)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
	}
	return result, nil
}

func formatFields(fields []FieldDescriptor) string {
	var b strings.Builder
	for _, f := range fields {
		sample, _ := json.Marshal(f.SampleValue)
		s := string(sample)
		if r := []rune(s); len(r) > 80 {
			s = string(r[:77]) + "..."
		}
		fmt.Fprintf(&b, "- %s (%s): %s\n", f.Path, f.Type, s)
	}
	return b.String()
}

func formatScores(scores map[string]float64) string {
	names := make([]string, 0, len(scores))
	for n := range scores {
		names = append(names, n)
	}
	sort.Strings(names)
	var b strings.Builder
	for _, n := range names {
		fmt.Fprintf(&b, "- %s: %.2f\n", n, scores[n])
	}
	return b.String()
}
