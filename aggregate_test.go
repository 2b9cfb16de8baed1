package autodoc

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestAggregate(t *testing.T) {
	s := DefaultScoring()
	fields := []string{"work_order_number", "customer_name", "scheduled_date", "priority"}
	required := map[string]bool{"work_order_number": true, "customer_name": true, "scheduled_date": true}

	cands := []MatchCandidate{
		{TemplateField: "work_order_number", SourceFieldPath: "Job Number", Confidence: 0.85, Strategy: StrategySemanticGroup},
		{TemplateField: "customer_name", SourceFieldPath: "Customer", Confidence: 0.85, Strategy: StrategySemanticGroup},
		{TemplateField: "customer_name", SourceFieldPath: "Customer", Confidence: 0.844, Strategy: StrategySubstring},
		{TemplateField: "scheduled_date", SourceFieldPath: "Scheduled Date", Confidence: 0.98, Strategy: StrategyExact},
		{TemplateField: "priority", SourceFieldPath: "Notes", Confidence: 0.2, Strategy: StrategyEditDistance},
	}

	res := Aggregate(fields, required, cands, s)

	want := MappingResult{
		Mappings: map[string]MatchCandidate{
			"work_order_number": cands[0],
			"customer_name":     cands[1],
			"scheduled_date":    cands[3],
		},
		UnmappedFields:    []string{"priority"},
		Coverage:          0.75,
		OverallConfidence: (0.85 + 0.85 + 0.98) / 3.5,
		TotalFields:       4,
	}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Errorf("Aggregate() mismatch (-want +got):\n%s", diff)
	}
}

func TestAggregate_TieBreaks(t *testing.T) {
	s := DefaultScoring()
	tests := []struct {
		name  string
		cands []MatchCandidate
		want  string
	}{
		{
			name: "strategy priority",
			cands: []MatchCandidate{
				{TemplateField: "f", SourceFieldPath: "a", Confidence: 0.9, Strategy: StrategyEditDistance},
				{TemplateField: "f", SourceFieldPath: "b", Confidence: 0.9, Strategy: StrategySubstring},
			},
			want: "b",
		},
		{
			name: "lexical path",
			cands: []MatchCandidate{
				{TemplateField: "f", SourceFieldPath: "zeta", Confidence: 0.9, Strategy: StrategyExact},
				{TemplateField: "f", SourceFieldPath: "alpha", Confidence: 0.9, Strategy: StrategyExact},
			},
			want: "alpha",
		},
		{
			name: "confidence first",
			cands: []MatchCandidate{
				{TemplateField: "f", SourceFieldPath: "a", Confidence: 0.8, Strategy: StrategyExact},
				{TemplateField: "f", SourceFieldPath: "b", Confidence: 0.81, Strategy: StrategyAIFallback},
			},
			want: "b",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Aggregate([]string{"f"}, nil, tt.cands, s)
			assert.Equal(t, tt.want, res.Mappings["f"].SourceFieldPath)
		})
	}
}

func TestAggregate_Empty(t *testing.T) {
	res := Aggregate(nil, nil, nil, DefaultScoring())
	assert.Equal(t, 0, res.TotalFields)
	assert.Zero(t, res.Coverage)
	assert.Zero(t, res.OverallConfidence)
	assert.NotNil(t, res.UnmappedFields)

	res = Aggregate([]string{"a", "b"}, nil, nil, DefaultScoring())
	assert.Equal(t, []string{"a", "b"}, res.UnmappedFields)
	assert.Zero(t, res.Coverage)
}

// Raising any single candidate's confidence never lowers the overall
// confidence of the mapping.
func TestAggregate_Monotonic(t *testing.T) {
	s := DefaultScoring()
	rng := rand.New(rand.NewSource(42))
	fields := []string{"a", "b", "c", "d", "e"}
	strategies := []Strategy{StrategyExact, StrategySubstring, StrategySemanticGroup, StrategyEditDistance, StrategyAIFallback}

	for iter := 0; iter < 500; iter++ {
		required := map[string]bool{}
		for _, f := range fields {
			required[f] = rng.Intn(2) == 0
		}
		var cands []MatchCandidate
		for _, f := range fields {
			for n := rng.Intn(4); n > 0; n-- {
				cands = append(cands, MatchCandidate{
					TemplateField:   f,
					SourceFieldPath: string(rune('p' + rng.Intn(5))),
					Confidence:      rng.Float64(),
					Strategy:        strategies[rng.Intn(len(strategies))],
				})
			}
		}
		if len(cands) == 0 {
			continue
		}
		before := Aggregate(fields, required, cands, s)

		bumped := append([]MatchCandidate(nil), cands...)
		i := rng.Intn(len(bumped))
		bumped[i].Confidence = min(1, bumped[i].Confidence+rng.Float64()*0.5)
		after := Aggregate(fields, required, bumped, s)

		if after.OverallConfidence < before.OverallConfidence-1e-12 {
			t.Fatalf("iteration %d: confidence dropped from %f to %f after raising %+v",
				iter, before.OverallConfidence, after.OverallConfidence, cands[i])
		}
		assert.GreaterOrEqual(t, after.Coverage, before.Coverage)
		assert.Equal(t, float64(len(before.Mappings))/float64(len(fields)), before.Coverage)
	}
}
