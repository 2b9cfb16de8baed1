package autodoc

import (
	_ "embed"
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed vocabulary.yaml
var vocabularyYAML []byte

// Vocabulary is the versioned synonym table shared by the semantic matcher
// and the document type detector. It is immutable once loaded.
type Vocabulary struct {
	Version int
	groups  []conceptGroup
	types   []documentTypeRule
}

type conceptGroup struct {
	name     string
	synonyms []string // normalised, longest first
}

type documentTypeRule struct {
	name     string
	primary  []string
	keywords []string
}

type vocabularyFile struct {
	Version       int                 `yaml:"version"`
	Groups        map[string][]string `yaml:"groups"`
	DocumentTypes map[string]struct {
		Primary  []string `yaml:"primary"`
		Keywords []string `yaml:"keywords"`
	} `yaml:"documentTypes"`
}

var defaultVocabulary = sync.OnceValues(func() (*Vocabulary, error) {
	return LoadVocabulary(vocabularyYAML)
})

// DefaultVocabulary returns the embedded vocabulary.
func DefaultVocabulary() *Vocabulary {
	v, err := defaultVocabulary()
	if err != nil {
		panic(fmt.Sprintf("autodoc: embedded vocabulary: %v", err))
	}
	return v
}

// LoadVocabulary parses a YAML vocabulary document.
func LoadVocabulary(data []byte) (*Vocabulary, error) {
	var f vocabularyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("vocabulary: %w", err)
	}
	if f.Version <= 0 {
		return nil, fmt.Errorf("vocabulary: version must be positive, got %d", f.Version)
	}

	v := &Vocabulary{Version: f.Version}
	for name, syns := range f.Groups {
		if len(syns) == 0 {
			return nil, fmt.Errorf("vocabulary: group %q has no synonyms", name)
		}
		g := conceptGroup{name: name, synonyms: normalizeAll(syns)}
		sort.SliceStable(g.synonyms, func(i, j int) bool {
			return len(g.synonyms[i]) > len(g.synonyms[j])
		})
		v.groups = append(v.groups, g)
	}
	sort.Slice(v.groups, func(i, j int) bool { return v.groups[i].name < v.groups[j].name })

	for name, dt := range f.DocumentTypes {
		if len(dt.Primary) == 0 {
			return nil, fmt.Errorf("vocabulary: document type %q has no primary keywords", name)
		}
		v.types = append(v.types, documentTypeRule{
			name:     name,
			primary:  normalizeAll(dt.Primary),
			keywords: normalizeAll(dt.Keywords),
		})
	}
	sort.Slice(v.types, func(i, j int) bool { return v.types[i].name < v.types[j].name })
	return v, nil
}

func normalizeAll(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		n := normalizeName(s)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// Groups returns the concept group names in lexical order.
func (v *Vocabulary) Groups() []string {
	out := make([]string, len(v.groups))
	for i, g := range v.groups {
		out[i] = g.name
	}
	return out
}

// DocumentTypes returns the taxonomy in lexical order.
func (v *Vocabulary) DocumentTypes() []string {
	out := make([]string, len(v.types))
	for i, t := range v.types {
		out[i] = t.name
	}
	return out
}

// HasDocumentType reports whether name is part of the taxonomy.
func (v *Vocabulary) HasDocumentType(name string) bool {
	for _, t := range v.types {
		if t.name == name {
			return true
		}
	}
	return false
}

// GroupsOf returns, for each concept group hit by grams, the longest
// synonym that matched.
func (v *Vocabulary) GroupsOf(grams []string) map[string]string {
	set := make(map[string]bool, len(grams))
	for _, g := range grams {
		set[g] = true
	}
	out := map[string]string{}
	for _, g := range v.groups {
		for _, syn := range g.synonyms {
			if set[syn] {
				out[g.name] = syn
				break
			}
		}
	}
	return out
}

// scoreDocumentTypes weighs keyword hits per document type: two points for
// a primary keyword, one for a supporting keyword, three points saturate.
func (v *Vocabulary) scoreDocumentTypes(grams map[string]bool) map[string]float64 {
	scores := make(map[string]float64, len(v.types))
	for _, t := range v.types {
		weight := 0
		for _, k := range t.primary {
			if grams[k] {
				weight += 2
			}
		}
		for _, k := range t.keywords {
			if grams[k] {
				weight++
			}
		}
		scores[t.name] = min(1, float64(weight)/3)
	}
	return scores
}
