package autodoc

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
)

const (
	doctypeAmbiguityGap = 0.1
	doctypeWeakScore    = 0.3
)

// HeuristicDocumentType scores every taxonomy entry by keyword presence in
// the record's field names.
func HeuristicDocumentType(schema *DiscoveredSchema, vocab *Vocabulary) DocumentTypeGuess {
	grams := map[string]bool{}
	for _, f := range schema.Fields {
		for _, seg := range strings.Split(f.Path, ".") {
			for _, g := range newNameInfo(seg).grams {
				grams[g] = true
			}
		}
	}

	scores := vocab.scoreDocumentTypes(grams)
	ranked := rankScores(scores)
	if len(ranked) == 0 || scores[ranked[0]] == 0 {
		return DocumentTypeGuess{
			Type:      DocumentTypeUnknown,
			Reasoning: "no document type keywords in field names",
			Source:    GuessHeuristic,
			Scores:    scores,
		}
	}
	top := ranked[0]
	return DocumentTypeGuess{
		Type:       top,
		Confidence: scores[top],
		Reasoning:  fmt.Sprintf("field names match %s keywords (score %.2f)", top, scores[top]),
		Source:     GuessHeuristic,
		Scores:     scores,
	}
}

// rankScores orders names by score descending, then name.
func rankScores(scores map[string]float64) []string {
	names := make([]string, 0, len(scores))
	for n := range scores {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		if scores[names[i]] != scores[names[j]] {
			return scores[names[i]] > scores[names[j]]
		}
		return names[i] < names[j]
	})
	return names
}

// ambiguous reports whether the heuristic needs a second opinion: the top
// score is weak or the runner-up is too close.
func ambiguous(scores map[string]float64) bool {
	ranked := rankScores(scores)
	if len(ranked) == 0 {
		return true
	}
	top := scores[ranked[0]]
	if top < doctypeWeakScore {
		return true
	}
	return len(ranked) > 1 && top-scores[ranked[1]] < doctypeAmbiguityGap
}

type documentTypeDetector struct {
	vocab   *Vocabulary
	oracle  Oracle
	timeout time.Duration
	log     *slog.Logger
}

// detect runs the heuristic and escalates ambiguous results to the oracle.
// Oracle failures degrade to the heuristic guess.
func (d *documentTypeDetector) detect(ctx context.Context, schema *DiscoveredSchema) DocumentTypeGuess {
	guess := HeuristicDocumentType(schema, d.vocab)
	if d.oracle == nil || schema.Len() == 0 || !ambiguous(guess.Scores) {
		return guess
	}

	octx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	d.log.Debug("escalating document type to oracle", "heuristic", guess.Type, "confidence", guess.Confidence)
	answer, err := d.oracle.GuessDocumentType(octx, DocumentTypeRequest{
		Fields:    schema.Fields,
		Taxonomy:  d.vocab.DocumentTypes(),
		Heuristic: guess.Scores,
	})
	if err != nil {
		d.log.Warn("oracle unavailable, keeping heuristic document type", "error", err, "type", guess.Type)
		return guess
	}
	if answer.Type != DocumentTypeUnknown && !d.vocab.HasDocumentType(answer.Type) {
		d.log.Warn("oracle returned a type outside the taxonomy", "type", answer.Type)
		return guess
	}

	answer.Confidence = clamp01(answer.Confidence)
	answer.Source = GuessOracle
	answer.Scores = guess.Scores
	return answer
}

func clamp01(f float64) float64 {
	return max(0, min(1, f))
}
