package autodoc

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"time"
)

// Model represents a model identifier
type Model string

// Runner lets the batch orchestrator schedule work with any concurrency model.
type Runner interface {
	Go(fn func() error) // schedule
	Wait() error        // join / propagate first err
}

// PromptProvider should return the prompt template text for the given tag
type PromptProvider interface {
	GetPrompt(tag string, version int) (string, error)
}

// ContextualPromptProvider extends PromptProvider to support template variables.
type ContextualPromptProvider interface {
	PromptProvider
	GetPromptWithContext(tag string, version int, vars map[string]any) (string, error)
}

// Invoker abstraction allows mocking, retrying, and caching
type Invoker interface {
	Generate(ctx context.Context, model Model, prompt string) ([]byte, error)
}

// FieldType is the inferred type of a record leaf.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeNumber  FieldType = "number"
	TypeBoolean FieldType = "boolean"
	TypeDate    FieldType = "date"
	TypeArray   FieldType = "array"
	TypeObject  FieldType = "object"
)

// Valid reports whether t is one of the known field types.
func (t FieldType) Valid() bool {
	switch t {
	case TypeString, TypeNumber, TypeBoolean, TypeDate, TypeArray, TypeObject:
		return true
	}
	return false
}

// FieldDescriptor describes one leaf of an input record.
type FieldDescriptor struct {
	Name        string    `json:"name"`
	Path        string    `json:"path"` // dot notation for nested access
	Type        FieldType `json:"type"`
	SampleValue any       `json:"sampleValue,omitempty"`
	IsArray     bool      `json:"isArray,omitempty"` // leaf lives under an array of objects
}

// DiscoveredSchema is the inferred shape of one input record. Paths are
// unique and the schema is never mutated after InferSchema returns it.
type DiscoveredSchema struct {
	Fields []FieldDescriptor `json:"fields"`
	byPath map[string]int
}

func newDiscoveredSchema(fields []FieldDescriptor) *DiscoveredSchema {
	s := &DiscoveredSchema{Fields: fields, byPath: make(map[string]int, len(fields))}
	for i, f := range fields {
		s.byPath[f.Path] = i
	}
	return s
}

// Len returns the number of leaves.
func (s *DiscoveredSchema) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Fields)
}

// Lookup returns the descriptor for path.
func (s *DiscoveredSchema) Lookup(path string) (FieldDescriptor, bool) {
	if s == nil {
		return FieldDescriptor{}, false
	}
	i, ok := s.byPath[path]
	if !ok {
		return FieldDescriptor{}, false
	}
	return s.Fields[i], true
}

// Paths returns every leaf path in discovery order.
func (s *DiscoveredSchema) Paths() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		out[i] = f.Path
	}
	return out
}

// SampleValues returns path -> sample value.
func (s *DiscoveredSchema) SampleValues() map[string]any {
	out := make(map[string]any, s.Len())
	if s == nil {
		return out
	}
	for _, f := range s.Fields {
		out[f.Path] = f.SampleValue
	}
	return out
}

// Strategy names the rule that produced a match candidate.
type Strategy string

const (
	StrategyOverride      Strategy = "override"
	StrategyExact         Strategy = "exact"
	StrategySubstring     Strategy = "substring"
	StrategySemanticGroup Strategy = "semantic_group"
	StrategyEditDistance  Strategy = "edit_distance"
	StrategyAIFallback    Strategy = "ai_fallback"
)

// rank orders strategies for tie-breaking; lower wins.
func (s Strategy) rank() int {
	switch s {
	case StrategyOverride:
		return 0
	case StrategyExact:
		return 1
	case StrategySubstring:
		return 2
	case StrategySemanticGroup:
		return 3
	case StrategyEditDistance:
		return 4
	case StrategyAIFallback:
		return 5
	}
	return 6
}

// MatchCandidate is one proposed mapping from a template placeholder to a
// source field.
type MatchCandidate struct {
	TemplateField   string   `json:"templateField"`
	SourceFieldPath string   `json:"sourceFieldPath"`
	Confidence      float64  `json:"confidence"`
	Reasoning       string   `json:"reasoning"`
	Strategy        Strategy `json:"strategy"`
}

// MappingResult is the aggregated mapping of one template.
type MappingResult struct {
	Mappings          map[string]MatchCandidate `json:"mappings"`
	UnmappedFields    []string                  `json:"unmappedFields"`
	Coverage          float64                   `json:"coverage"`
	OverallConfidence float64                   `json:"overallConfidence"`
	TotalFields       int                       `json:"totalFields"`
}

// MappedPaths returns template field -> source path for every mapped field.
func (m MappingResult) MappedPaths() map[string]string {
	out := make(map[string]string, len(m.Mappings))
	for field, c := range m.Mappings {
		out[field] = c.SourceFieldPath
	}
	return out
}

// MappedFields returns the mapped template fields in lexical order.
func (m MappingResult) MappedFields() []string {
	out := make([]string, 0, len(m.Mappings))
	for field := range m.Mappings {
		out = append(out, field)
	}
	sort.Strings(out)
	return out
}

// TemplateCandidate is a registry template scored against one record.
type TemplateCandidate struct {
	TemplateID        string        `json:"templateId"`
	Template          *Template     `json:"-"`
	Mapping           MappingResult `json:"mappingResult"`
	DocumentTypeMatch float64       `json:"documentTypeMatch"`
	Score             float64       `json:"score"`
}

// OutputFormat selects what the pipeline produces.
type OutputFormat string

const (
	FormatPreview OutputFormat = "preview"
	FormatHTML    OutputFormat = "html"
	FormatPDF     OutputFormat = "pdf"
	FormatPNG     OutputFormat = "png"
)

// Valid reports whether f is a known output format.
func (f OutputFormat) Valid() bool {
	switch f {
	case FormatPreview, FormatHTML, FormatPDF, FormatPNG:
		return true
	}
	return false
}

// ContentType returns the MIME type of rendered output.
func (f OutputFormat) ContentType() string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	case FormatPNG:
		return "image/png"
	}
	return "text/html; charset=utf-8"
}

// RenderJob is one unit of rendering work owned by the Pool.
type RenderJob struct {
	ID       string
	Markup   string
	Format   OutputFormat
	Deadline time.Time
}

// Request is the one-call pipeline input. Exactly one of Record, RawRecord or
// SourceID+RecordID supplies the data.
type Request struct {
	Record              map[string]any    `json:"record,omitempty"`
	RawRecord           json.RawMessage   `json:"rawRecord,omitempty"`
	SourceID            string            `json:"sourceId,omitempty"`
	RecordID            string            `json:"recordId,omitempty"`
	TemplateID          string            `json:"templateIdOverride,omitempty"`
	MappingOverrides    map[string]string `json:"mappingOverrides,omitempty"`
	OutputFormat        OutputFormat      `json:"outputFormat,omitempty"`
	ConfidenceThreshold float64           `json:"confidenceThreshold,omitempty"` // 0 -> 0.8
	AutoAccept          *bool             `json:"autoAcceptAboveThreshold,omitempty"`
	TTLSeconds          int               `json:"ttl,omitempty"`
}

func (r Request) threshold() float64 {
	if r.ConfidenceThreshold <= 0 {
		return DefaultConfidenceThreshold
	}
	return r.ConfidenceThreshold
}

func (r Request) autoAccept() bool {
	return r.AutoAccept == nil || *r.AutoAccept
}

func (r Request) format() OutputFormat {
	if r.OutputFormat == "" {
		return FormatPDF
	}
	return r.OutputFormat
}

// Status distinguishes a finished document from a suggestion.
type Status string

const (
	StatusCompleted         Status = "completed"
	StatusNeedsConfirmation Status = "needs_confirmation"
)

// TemplateUsage describes the template a result was produced with, or the
// suggested one when confirmation is needed.
type TemplateUsage struct {
	ID         string  `json:"id"`
	Name       string  `json:"name,omitempty"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// Result is the one-call pipeline output.
type Result struct {
	Status            Status              `json:"status"`
	OutputFormat      OutputFormat        `json:"outputFormat"`
	PayloadOrURL      string              `json:"payloadOrUrl,omitempty"`
	Hosted            *Hosted             `json:"hosted,omitempty"`
	TemplateUsed      *TemplateUsage      `json:"templateUsed,omitempty"`
	SuggestedTemplate *TemplateUsage      `json:"suggestedTemplate,omitempty"`
	Confidence        float64             `json:"confidence"`
	Reasoning         string              `json:"reasoning"`
	MappingsApplied   map[string]string   `json:"mappingsApplied,omitempty"`
	Data              map[string]any      `json:"data,omitempty"`
	UnmappedFields    []string            `json:"unmappedFields"`
	MappingCoverage   float64             `json:"mappingCoverage"`
	DocumentType      DocumentTypeGuess   `json:"documentType"`
	Candidates        []TemplateCandidate `json:"candidates,omitempty"`
}

// DefaultConfidenceThreshold is used when a request does not set one.
const DefaultConfidenceThreshold = 0.8

// Scoring holds the tunable heuristic constants of matching and selection.
type Scoring struct {
	MappingWeight      float64 // template score share of mapping confidence
	DocumentTypeWeight float64 // template score share of document type match
	RequiredWeight     float64
	OptionalWeight     float64
	UnmappedFloor      float64 // below this a field is unmapped
	CandidateFloor     float64 // below this a candidate is dropped
	NoMatchFloor       float64 // every template below this -> NoMatch
	FallbackTrigger    float64 // best below this -> ask the oracle
	FallbackClamp      float64 // ceiling for oracle confidences
	EditDistanceAccept float64 // minimum normalised similarity
}

// DefaultScoring returns the stock constants.
func DefaultScoring() Scoring {
	return Scoring{
		MappingWeight:      0.6,
		DocumentTypeWeight: 0.4,
		RequiredWeight:     1.0,
		OptionalWeight:     0.5,
		UnmappedFloor:      0.3,
		CandidateFloor:     0.1,
		NoMatchFloor:       0.3,
		FallbackTrigger:    0.5,
		FallbackClamp:      0.9,
		EditDistanceAccept: 0.8,
	}
}

// Options represents functional options for the Generator
type Options struct {
	Oracle           Oracle
	Sink             Sink
	Pool             *Pool
	Vocabulary       *Vocabulary
	Logger           *slog.Logger
	Scoring          Scoring
	Sources          Sources
	OracleTimeout    time.Duration
	RenderTimeout    time.Duration
	HostTTL          time.Duration
	BatchConcurrency int
}

// Functional option constructors
func WithOracle(o Oracle) func(*Options) {
	return func(opts *Options) { opts.Oracle = o }
}

func WithSink(s Sink) func(*Options) {
	return func(o *Options) { o.Sink = s }
}

func WithPool(p *Pool) func(*Options) {
	return func(o *Options) { o.Pool = p }
}

func WithVocabulary(v *Vocabulary) func(*Options) {
	return func(o *Options) { o.Vocabulary = v }
}

func WithLogger(l *slog.Logger) func(*Options) {
	return func(o *Options) { o.Logger = l }
}

func WithScoring(s Scoring) func(*Options) {
	return func(o *Options) { o.Scoring = s }
}

func WithSources(s Sources) func(*Options) {
	return func(o *Options) { o.Sources = s }
}

func WithOracleTimeout(d time.Duration) func(*Options) {
	return func(o *Options) { o.OracleTimeout = d }
}

func WithRenderTimeout(d time.Duration) func(*Options) {
	return func(o *Options) { o.RenderTimeout = d }
}

func WithHostTTL(d time.Duration) func(*Options) {
	return func(o *Options) { o.HostTTL = d }
}

// WithBatchConcurrency caps how many batch items run at once. The value is
// further capped by the render pool size.
func WithBatchConcurrency(n int) func(*Options) {
	return func(o *Options) { o.BatchConcurrency = n }
}
