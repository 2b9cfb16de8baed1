package autodoc

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func newStubOracle(t *testing.T, inv *StubInvoker, retries int) *GenAIOracle {
	t.Helper()
	o, err := NewOracleWithInvoker(inv, OracleConfig{MaxRetries: retries, Backoff: time.Millisecond, Logger: discardLogger()})
	require.NoError(t, err)
	return o
}

func TestGenAIOracle_GuessDocumentType(t *testing.T) {
	inv := &StubInvoker{Responses: [][]byte{[]byte("```json\n{\"type\": \"work_order\", \"confidence\": 0.82, \"reasoning\": \"job number and schedule\"}\n```")}}
	o := newStubOracle(t, inv, 0)

	g, err := o.GuessDocumentType(t.Context(), DocumentTypeRequest{
		Fields:    InferSchema(jobRecord).Fields,
		Taxonomy:  []string{"invoice", "work_order"},
		Heuristic: map[string]float64{"work_order": 1, "invoice": 0},
	})
	require.NoError(t, err)
	assert.Equal(t, "work_order", g.Type)
	assert.Equal(t, 0.82, g.Confidence)
	assert.Equal(t, "job number and schedule", g.Reasoning)

	require.Len(t, inv.Prompts, 1)
	assert.Contains(t, inv.Prompts[0], "Allowed types: invoice, work_order, unknown.")
	assert.Contains(t, inv.Prompts[0], "- work_order: 1.00")
	assert.Contains(t, inv.Prompts[0], `- Job Number (string): "FWO-2024-0523"`)
}

func TestGenAIOracle_SuggestMappings(t *testing.T) {
	inv := &StubInvoker{Responses: [][]byte{[]byte(`Here you go:
{"mappings": [{"templateField": "technician", "sourceFieldPath": "crew", "confidence": 0.7, "reasoning": "person name"}]}
Hope this helps.`)}}
	o := newStubOracle(t, inv, 0)

	got, err := o.SuggestMappings(t.Context(), MappingRequest{
		TemplateID: "work_order",
		Unresolved: []TemplateField{{Name: "technician", Type: TypeString, Required: true, Description: "who does the job"}},
		Fields:     InferSchema(map[string]any{"crew": "Dana"}).Fields,
	})
	require.NoError(t, err)
	assert.Equal(t, []MappingSuggestion{{TemplateField: "technician", SourceFieldPath: "crew", Confidence: 0.7, Reasoning: "person name"}}, got)
	assert.Contains(t, inv.Prompts[0], "- technician (string, required): who does the job")
}

func TestGenAIOracle_RetriesInvalidAnswers(t *testing.T) {
	inv := &StubInvoker{Responses: [][]byte{
		[]byte(`not json at all`),
		[]byte(`{"type": "invoice"}`),
		[]byte(`{"type": "invoice", "confidence": 0.6}`),
	}}
	o := newStubOracle(t, inv, 2)

	g, err := o.GuessDocumentType(t.Context(), DocumentTypeRequest{Taxonomy: []string{"invoice"}})
	require.NoError(t, err)
	assert.Equal(t, "invoice", g.Type)
	assert.Equal(t, 3, inv.Calls())
}

func TestGenAIOracle_Unavailable(t *testing.T) {
	tests := []struct {
		name string
		inv  *StubInvoker
	}{
		{"transport error", &StubInvoker{Err: errors.New("429 quota")}},
		{"schema violation", &StubInvoker{Responses: [][]byte{[]byte(`{"mappings": "none"}`)}}},
		{"no responses", &StubInvoker{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newStubOracle(t, tt.inv, 1)
			_, err := o.SuggestMappings(t.Context(), MappingRequest{TemplateID: "x"})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrOracleUnavailable)
			assert.Equal(t, 2, tt.inv.Calls())
		})
	}
}

func TestGenAIOracle_Canceled(t *testing.T) {
	inv := &StubInvoker{Err: errors.New("flaky")}
	o, err := NewOracleWithInvoker(inv, OracleConfig{MaxRetries: 5, Backoff: time.Hour, Logger: discardLogger()})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	_, err = o.GuessDocumentType(ctx, DocumentTypeRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOracleUnavailable)
	assert.Equal(t, 1, inv.Calls(), "backoff is cut short by the context")
}

func TestSanitizeJSONResponse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"prose", `Sure! {"a":{"b":2}} done`, `{"a":{"b":2}}`},
		{"no object", `[1,2]`, `[1,2]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(SanitizeJSONResponse([]byte(tt.in))))
		})
	}
}

func TestRetryable(t *testing.T) {
	calls := 0
	err := retryable(t.Context(), func() error {
		calls++
		if calls < 3 {
			return errors.New("again")
		}
		return nil
	}, 3, time.Millisecond, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = retryable(t.Context(), func() error { calls++; return errors.New("always") }, 0, time.Millisecond, discardLogger())
	assert.EqualError(t, err, "always")
	assert.Equal(t, 1, calls)
}

func TestApplyParameters(t *testing.T) {
	tests := []struct {
		name    string
		params  map[string]string
		wantErr string
	}{
		{"empty", nil, ""},
		{"valid", map[string]string{"temperature": "0.2", "topK": "40", "topP": "0.9", "maxOutputTokens": "512"}, ""},
		{"temperature range", map[string]string{"temperature": "1.5"}, "between 0.0 and 1.0"},
		{"temperature syntax", map[string]string{"temperature": "warm"}, "invalid temperature"},
		{"topK", map[string]string{"topK": "0"}, "greater than 0"},
		{"topP", map[string]string{"topP": "-0.1"}, "between 0.0 and 1.0"},
		{"maxOutputTokens", map[string]string{"maxOutputTokens": "lots"}, "invalid maxOutputTokens"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg genai.GenerateContentConfig
			err := applyParameters(&cfg, tt.params)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			if tt.name == "valid" {
				require.NotNil(t, cfg.Temperature)
				assert.InDelta(t, 0.2, *cfg.Temperature, 1e-6)
				assert.Equal(t, int32(512), cfg.MaxOutputTokens)
			}
		})
	}
}

func TestFormatFields(t *testing.T) {
	long := strings.Repeat("x", 120)
	out := formatFields([]FieldDescriptor{
		{Path: "notes", Type: TypeString, SampleValue: long},
		{Path: "qty", Type: TypeNumber, SampleValue: 3},
	})
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[0], "..."))
	assert.Len(t, strings.TrimPrefix(lines[0], "- notes (string): "), 80)
	assert.Equal(t, "- qty (number): 3", lines[1])

	out = formatFields([]FieldDescriptor{{Path: "notes", Type: TypeString, SampleValue: strings.Repeat("é", 120)}})
	sample := strings.TrimSuffix(strings.TrimPrefix(out, "- notes (string): "), "\n")
	assert.True(t, utf8.ValidString(sample))
	assert.Equal(t, 80, utf8.RuneCountInString(sample))

	assert.Equal(t, "- a: 0.50\n- b: 1.00\n", formatScores(map[string]float64{"b": 1, "a": 0.5}))
}
