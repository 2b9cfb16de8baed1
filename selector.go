package autodoc

import (
	"fmt"
	"sort"
)

// Decision is the outcome of template selection: *Selected,
// *NeedsConfirmation or *NoMatch.
type Decision interface {
	decision()
}

// Selected means rendering proceeds with Candidate.
type Selected struct {
	Candidate  TemplateCandidate
	Overridden bool
	Reasoning  string
}

// NeedsConfirmation halts the pipeline and offers Best as a suggestion.
type NeedsConfirmation struct {
	Best      TemplateCandidate
	Reasoning string
}

// NoMatch means no registered template fits the record. Best is nil when
// the registry was empty.
type NoMatch struct {
	Best      *TemplateCandidate
	Reasoning string
}

func (*Selected) decision()          {}
func (*NeedsConfirmation) decision() {}
func (*NoMatch) decision()           {}

// Confidence reports the confidence attached to the selection. An override
// is always fully confident.
func (s *Selected) Confidence() float64 {
	if s.Overridden {
		return 1.0
	}
	return s.Candidate.Mapping.OverallConfidence
}

// SelectParams carries the caller's selection preferences.
type SelectParams struct {
	Override   string
	Threshold  float64
	AutoAccept bool
}

// SelectTemplate scores and ranks candidates and decides what to do with
// the best one. The ranked slice is returned for reporting. An override
// naming a template absent from candidates is ErrTemplateNotFound.
func SelectTemplate(guess DocumentTypeGuess, candidates []TemplateCandidate, p SelectParams, s Scoring) (Decision, []TemplateCandidate, error) {
	ranked := make([]TemplateCandidate, len(candidates))
	copy(ranked, candidates)
	for i := range ranked {
		ranked[i].DocumentTypeMatch = documentTypeMatch(guess, ranked[i].Template)
		ranked[i].Score = s.MappingWeight*ranked[i].Mapping.OverallConfidence +
			s.DocumentTypeWeight*ranked[i].DocumentTypeMatch
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Mapping.OverallConfidence != b.Mapping.OverallConfidence {
			return a.Mapping.OverallConfidence > b.Mapping.OverallConfidence
		}
		return a.TemplateID < b.TemplateID
	})

	if p.Override != "" {
		for _, c := range ranked {
			if c.TemplateID == p.Override {
				return &Selected{
					Candidate:  c,
					Overridden: true,
					Reasoning: fmt.Sprintf("template %s requested by caller; %d of %d fields mapped",
						c.TemplateID, len(c.Mapping.Mappings), c.Mapping.TotalFields),
				}, ranked, nil
			}
		}
		return nil, ranked, fmt.Errorf("%w: %q", ErrTemplateNotFound, p.Override)
	}

	if len(ranked) == 0 {
		return &NoMatch{Reasoning: "the template registry is empty"}, ranked, nil
	}
	best := ranked[0]
	if best.Score < s.NoMatchFloor {
		return &NoMatch{
			Best: &best,
			Reasoning: fmt.Sprintf("no template scored at least %.2f; best was %s at %.2f",
				s.NoMatchFloor, best.TemplateID, best.Score),
		}, ranked, nil
	}

	conf := best.Mapping.OverallConfidence
	switch {
	case conf < p.Threshold:
		return &NeedsConfirmation{
			Best: best,
			Reasoning: fmt.Sprintf("best template %s has mapping confidence %.2f, below threshold %.2f; unmapped: %v",
				best.TemplateID, conf, p.Threshold, best.Mapping.UnmappedFields),
		}, ranked, nil
	case !p.AutoAccept:
		return &NeedsConfirmation{
			Best: best,
			Reasoning: fmt.Sprintf("auto-accept disabled; confirm template %s (mapping confidence %.2f)",
				best.TemplateID, conf),
		}, ranked, nil
	}
	return &Selected{
		Candidate: best,
		Reasoning: fmt.Sprintf("template %s scored %.2f (mapping %.2f, document type %.2f, coverage %.0f%%)",
			best.TemplateID, best.Score, conf, best.DocumentTypeMatch, best.Mapping.Coverage*100),
	}, ranked, nil
}

// documentTypeMatch is the guess confidence when the template category
// agrees with the guessed type, zero otherwise.
func documentTypeMatch(guess DocumentTypeGuess, t *Template) float64 {
	if t == nil || guess.Type == "" || guess.Type == DocumentTypeUnknown {
		return 0
	}
	if t.Category != guess.Type {
		return 0
	}
	return guess.Confidence
}
