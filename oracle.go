package autodoc

import "context"

// Oracle is the text-generation fallback consulted when deterministic
// matching is inconclusive. Implementations must honour ctx.
type Oracle interface {
	GuessDocumentType(ctx context.Context, req DocumentTypeRequest) (DocumentTypeGuess, error)
	SuggestMappings(ctx context.Context, req MappingRequest) ([]MappingSuggestion, error)
}

// DocumentTypeRequest carries the record shape and the heuristic scores the
// oracle is asked to arbitrate.
type DocumentTypeRequest struct {
	Fields    []FieldDescriptor  `json:"fields"`
	Taxonomy  []string           `json:"taxonomy"`
	Heuristic map[string]float64 `json:"heuristic"`
}

// MappingRequest asks for source paths for the unresolved placeholders of
// one template.
type MappingRequest struct {
	TemplateID string            `json:"templateId"`
	Unresolved []TemplateField   `json:"unresolved"`
	Fields     []FieldDescriptor `json:"fields"`
}

// MappingSuggestion is one oracle answer. Confidence is self-reported.
type MappingSuggestion struct {
	TemplateField   string  `json:"templateField"`
	SourceFieldPath string  `json:"sourceFieldPath"`
	Confidence      float64 `json:"confidence"`
	Reasoning       string  `json:"reasoning"`
}

// GuessSource tells where a document type guess came from.
type GuessSource string

const (
	GuessHeuristic GuessSource = "heuristic"
	GuessOracle    GuessSource = "oracle"
)

// DocumentTypeUnknown is reported when nothing in the record hints at a type.
const DocumentTypeUnknown = "unknown"

// DocumentTypeGuess is the advisory document classification of a record.
type DocumentTypeGuess struct {
	Type       string             `json:"type"`
	Confidence float64            `json:"confidence"`
	Reasoning  string             `json:"reasoning"`
	Source     GuessSource        `json:"source"`
	Scores     map[string]float64 `json:"scores,omitempty"`
}
