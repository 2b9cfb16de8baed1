package autodoc

import (
	"fmt"
	"sort"
)

// ReportNodeType defines what a report node describes.
type ReportNodeType string

const (
	DecisionNodeType     ReportNodeType = "Decision"
	DocumentTypeNodeType ReportNodeType = "DocumentType"
	CandidateNodeType    ReportNodeType = "TemplateCandidate"
	FieldNodeType        ReportNodeType = "FieldMapping"
	UnmappedNodeType     ReportNodeType = "Unmapped"
)

// ReportNode is one node of the explanation tree built for a pipeline run.
// Children are ordered: candidates by rank, fields by name.
type ReportNode struct {
	Type       ReportNodeType `json:"type"`
	Label      string         `json:"label,omitempty"`
	Confidence *float64       `json:"confidence,omitempty"`
	Score      *float64       `json:"score,omitempty"`
	Coverage   *float64       `json:"coverage,omitempty"`
	Strategy   Strategy       `json:"strategy,omitempty"`
	Source     string         `json:"source,omitempty"`
	Reasoning  string         `json:"reasoning,omitempty"`
	Children   []*ReportNode  `json:"children,omitempty"`
}

// ReportFormat selects how Explain prints a report.
type ReportFormat string

const (
	ReportText ReportFormat = "text"
	ReportJSON ReportFormat = "json"
)

// Report builds the explanation tree of an analysis, including NoMatch
// outcomes which never become a Result.
func (a *Analysis) Report() *ReportNode {
	root := &ReportNode{Type: DecisionNodeType}
	switch d := a.Decision.(type) {
	case *Selected:
		root.Label = "selected " + d.Candidate.TemplateID
		root.Confidence = ptr(d.Confidence())
		root.Reasoning = d.Reasoning
	case *NeedsConfirmation:
		root.Label = "needs confirmation: " + d.Best.TemplateID
		root.Confidence = ptr(d.Best.Mapping.OverallConfidence)
		root.Reasoning = d.Reasoning
	case *NoMatch:
		root.Label = "no template match"
		root.Reasoning = d.Reasoning
	}
	root.Children = reportChildren(a.DocumentType, a.Candidates)
	return root
}

// Report builds the explanation tree of a result.
func (r *Result) Report() *ReportNode {
	root := &ReportNode{Type: DecisionNodeType, Reasoning: r.Reasoning, Confidence: ptr(r.Confidence)}
	switch {
	case r.TemplateUsed != nil:
		root.Label = fmt.Sprintf("%s %s", r.Status, r.TemplateUsed.ID)
	case r.SuggestedTemplate != nil:
		root.Label = fmt.Sprintf("%s %s", r.Status, r.SuggestedTemplate.ID)
	default:
		root.Label = string(r.Status)
	}
	root.Children = reportChildren(r.DocumentType, r.Candidates)
	return root
}

func reportChildren(guess DocumentTypeGuess, candidates []TemplateCandidate) []*ReportNode {
	nodes := []*ReportNode{{
		Type:       DocumentTypeNodeType,
		Label:      guess.Type,
		Confidence: ptr(guess.Confidence),
		Source:     string(guess.Source),
		Reasoning:  guess.Reasoning,
	}}
	for _, c := range candidates {
		nodes = append(nodes, candidateNode(c))
	}
	return nodes
}

func candidateNode(c TemplateCandidate) *ReportNode {
	n := &ReportNode{
		Type:       CandidateNodeType,
		Label:      c.TemplateID,
		Score:      ptr(c.Score),
		Confidence: ptr(c.Mapping.OverallConfidence),
		Coverage:   ptr(c.Mapping.Coverage),
	}
	for _, field := range c.Mapping.MappedFields() {
		m := c.Mapping.Mappings[field]
		n.Children = append(n.Children, &ReportNode{
			Type:       FieldNodeType,
			Label:      field,
			Confidence: ptr(m.Confidence),
			Strategy:   m.Strategy,
			Source:     m.SourceFieldPath,
			Reasoning:  m.Reasoning,
		})
	}
	unmapped := append([]string(nil), c.Mapping.UnmappedFields...)
	sort.Strings(unmapped)
	for _, field := range unmapped {
		n.Children = append(n.Children, &ReportNode{Type: UnmappedNodeType, Label: field})
	}
	return n
}

// Explain prints a report tree in the given format.
func Explain(node *ReportNode, format ReportFormat) (string, error) {
	if node == nil {
		return "", fmt.Errorf("%w: nothing to explain", ErrInvalidRequest)
	}
	switch format {
	case ReportText, "":
		return formatReportText(node), nil
	case ReportJSON:
		return formatReportJSON(node)
	default:
		return "", fmt.Errorf("%w: unsupported report format %q", ErrInvalidRequest, format)
	}
}

func ptr[T any](v T) *T { return &v }
