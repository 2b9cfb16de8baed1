package autodoc

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/agext/levenshtein"
)

// Matcher proposes source fields for template placeholders.
type Matcher struct {
	vocab   *Vocabulary
	scoring Scoring
	oracle  Oracle
	timeout time.Duration
	log     *slog.Logger
}

// NewMatcher builds a matcher. Only WithOracle, WithOracleTimeout and
// WithLogger are read from the options.
func NewMatcher(vocab *Vocabulary, scoring Scoring, optFns ...func(*Options)) *Matcher {
	opts := Options{OracleTimeout: 5 * time.Second}
	for _, fn := range optFns {
		fn(&opts)
	}
	if vocab == nil {
		vocab = DefaultVocabulary()
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Matcher{
		vocab:   vocab,
		scoring: scoring,
		oracle:  opts.Oracle,
		timeout: opts.OracleTimeout,
		log:     log,
	}
}

type sourceName struct {
	path   string
	infos  []nameInfo // path view, then leaf view when it differs
	groups []map[string]string
}

type placeholderName struct {
	name   string
	info   nameInfo
	groups map[string]string
}

// Match runs the deterministic strategies for every placeholder against
// every schema field and returns the candidates above the floor, ordered by
// placeholder then schema order.
func (m *Matcher) Match(templateFields []string, schema *DiscoveredSchema) []MatchCandidate {
	sources := make([]sourceName, 0, schema.Len())
	for _, f := range schema.Fields {
		sn := sourceName{path: f.Path}
		views := []string{f.Path}
		if f.Name != f.Path {
			views = append(views, f.Name)
		}
		for _, v := range views {
			info := newNameInfo(v)
			sn.infos = append(sn.infos, info)
			sn.groups = append(sn.groups, m.vocab.GroupsOf(info.grams))
		}
		sources = append(sources, sn)
	}

	var out []MatchCandidate
	for _, tf := range templateFields {
		info := newNameInfo(tf)
		ph := placeholderName{name: tf, info: info, groups: m.vocab.GroupsOf(info.grams)}
		for _, src := range sources {
			best, ok := MatchCandidate{}, false
			for i := range src.infos {
				c, hit := m.matchPair(ph, src.infos[i], src.groups[i])
				if hit && (!ok || c.Confidence > best.Confidence) {
					best, ok = c, true
				}
			}
			if !ok || best.Confidence < m.scoring.CandidateFloor {
				continue
			}
			best.SourceFieldPath = src.path
			out = append(out, best)
		}
	}
	return out
}

// matchPair evaluates the strategies in priority order. An exact or
// semantic group match settles the pair; otherwise the more confident of
// substring and edit distance wins, substring on ties.
func (m *Matcher) matchPair(ph placeholderName, src nameInfo, srcGroups map[string]string) (MatchCandidate, bool) {
	t := ph.info
	if t.norm == "" || src.norm == "" {
		return MatchCandidate{}, false
	}
	cand := MatchCandidate{TemplateField: ph.name}
	found := false
	consider := func(conf float64, strategy Strategy, reasoning string) {
		if !found || conf > cand.Confidence {
			cand.Confidence, cand.Strategy, cand.Reasoning = conf, strategy, reasoning
			found = true
		}
	}

	switch {
	case strings.EqualFold(strings.TrimSpace(ph.name), strings.TrimSpace(src.raw)):
		consider(1.0, StrategyExact, "exact: identical names")
	case t.joined == src.joined:
		consider(0.98, StrategyExact, "exact: same name after normalisation")
	case t.norm == src.norm:
		consider(0.95, StrategyExact, "exact: same name after depluralisation")
	}
	if found {
		return cand, true
	}

	// Names sharing a concept group are synonyms; a shared substring or a
	// small edit distance between them says nothing more.
	if group, conf := semanticGroup(t, ph.groups, src, srcGroups); group != "" {
		consider(conf, StrategySemanticGroup, "semantic group: "+group)
		return cand, true
	}

	short, long := t.norm, src.norm
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) >= 3 && strings.Contains(long, short) {
		r := float64(len(short)) / float64(len(long))
		consider(0.8+0.1*r*r, StrategySubstring, fmt.Sprintf("substring: %q within %q", short, long))
	}

	if sim := levenshtein.Similarity(t.norm, src.norm, nil); sim > m.scoring.EditDistanceAccept {
		consider(sim*0.9, StrategyEditDistance, fmt.Sprintf("edit distance: similarity %.2f", sim))
	}
	return cand, found
}

// semanticGroup returns the shared concept group with the highest
// confidence. Confidence grows with how much of each name the matched
// synonym covers.
func semanticGroup(t nameInfo, tg map[string]string, s nameInfo, sg map[string]string) (string, float64) {
	var (
		bestGroup string
		bestConf  float64
	)
	for group, tsyn := range tg {
		ssyn, ok := sg[group]
		if !ok {
			continue
		}
		cover := (min(1, float64(len(tsyn))/float64(len(t.norm))) +
			min(1, float64(len(ssyn))/float64(len(s.norm)))) / 2
		conf := 0.75 + 0.1*cover
		if conf > bestConf || (conf == bestConf && group < bestGroup) {
			bestGroup, bestConf = group, conf
		}
	}
	return bestGroup, bestConf
}

// MatchTemplate runs Match for tpl and, when the oracle is configured, asks
// it about the placeholders whose best candidate stays below the fallback
// trigger. Oracle failures leave the deterministic candidates untouched.
func (m *Matcher) MatchTemplate(ctx context.Context, tpl *Template, schema *DiscoveredSchema) []MatchCandidate {
	cands := m.Match(tpl.FieldNames(), schema)
	if m.oracle == nil || schema.Len() == 0 {
		return cands
	}

	best := map[string]float64{}
	for _, c := range cands {
		best[c.TemplateField] = max(best[c.TemplateField], c.Confidence)
	}
	var unresolved []TemplateField
	for _, f := range tpl.Fields {
		if best[f.Name] < m.scoring.FallbackTrigger {
			unresolved = append(unresolved, f)
		}
	}
	if len(unresolved) == 0 {
		return cands
	}
	return append(cands, m.fallback(ctx, tpl.ID, unresolved, schema)...)
}

func (m *Matcher) fallback(ctx context.Context, templateID string, unresolved []TemplateField, schema *DiscoveredSchema) []MatchCandidate {
	octx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	m.log.Debug("asking oracle for mappings", "template", templateID, "unresolved", len(unresolved))
	suggestions, err := m.oracle.SuggestMappings(octx, MappingRequest{
		TemplateID: templateID,
		Unresolved: unresolved,
		Fields:     schema.Fields,
	})
	if err != nil {
		m.log.Warn("oracle unavailable, keeping deterministic mappings", "template", templateID, "error", err)
		return nil
	}

	wanted := make(map[string]bool, len(unresolved))
	for _, f := range unresolved {
		wanted[f.Name] = true
	}
	var out []MatchCandidate
	for _, s := range suggestions {
		if !wanted[s.TemplateField] {
			continue
		}
		if _, ok := schema.Lookup(s.SourceFieldPath); !ok {
			m.log.Debug("oracle suggested an unknown path", "field", s.TemplateField, "path", s.SourceFieldPath)
			continue
		}
		conf := min(clamp01(s.Confidence), m.scoring.FallbackClamp)
		if conf < m.scoring.CandidateFloor {
			continue
		}
		out = append(out, MatchCandidate{
			TemplateField:   s.TemplateField,
			SourceFieldPath: s.SourceFieldPath,
			Confidence:      conf,
			Reasoning:       "ai fallback: " + s.Reasoning,
			Strategy:        StrategyAIFallback,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TemplateField < out[j].TemplateField })
	return out
}
