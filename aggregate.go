package autodoc

// Aggregate picks one winning candidate per placeholder and folds the
// winners into a MappingResult. Ties go to the higher priority strategy,
// then to the lexically smaller source path. Placeholders without a winner
// at or above the unmapped floor count as zero in the weighted mean.
func Aggregate(templateFields []string, required map[string]bool, candidates []MatchCandidate, s Scoring) MappingResult {
	winners := make(map[string]MatchCandidate, len(templateFields))
	for _, c := range candidates {
		cur, ok := winners[c.TemplateField]
		if !ok || beats(c, cur) {
			winners[c.TemplateField] = c
		}
	}

	res := MappingResult{
		Mappings:       map[string]MatchCandidate{},
		UnmappedFields: []string{},
		TotalFields:    len(templateFields),
	}
	var weighted, weights float64
	for _, f := range templateFields {
		w := s.OptionalWeight
		if required[f] {
			w = s.RequiredWeight
		}
		weights += w

		c, ok := winners[f]
		if !ok || c.Confidence < s.UnmappedFloor {
			res.UnmappedFields = append(res.UnmappedFields, f)
			continue
		}
		res.Mappings[f] = c
		weighted += w * c.Confidence
	}

	if res.TotalFields > 0 {
		res.Coverage = float64(len(res.Mappings)) / float64(res.TotalFields)
	}
	if weights > 0 {
		res.OverallConfidence = weighted / weights
	}
	return res
}

func beats(a, b MatchCandidate) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	if a.Strategy.rank() != b.Strategy.rank() {
		return a.Strategy.rank() < b.Strategy.rank()
	}
	return a.SourceFieldPath < b.SourceFieldPath
}
