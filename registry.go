package autodoc

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed templates
var builtinTemplates embed.FS

// Template is a registered document template: markup plus the placeholders
// it declares.
type Template struct {
	ID          string          `json:"id" yaml:"id"`
	Name        string          `json:"name" yaml:"name"`
	Category    string          `json:"category" yaml:"category"`
	Description string          `json:"description,omitempty" yaml:"description"`
	Version     int             `json:"version" yaml:"version"`
	Fields      []TemplateField `json:"fields" yaml:"fields"`
	Markup      string          `json:"-" yaml:"markup"`
	MarkupFile  string          `json:"-" yaml:"markup_file"`

	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
}

// FieldNames returns the placeholder names in declaration order.
func (t *Template) FieldNames() []string {
	out := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		out[i] = f.Name
	}
	return out
}

// RequiredSet returns the required placeholder names.
func (t *Template) RequiredSet() map[string]bool {
	out := map[string]bool{}
	for _, f := range t.Fields {
		if f.Required {
			out[f.Name] = true
		}
	}
	return out
}

// Field looks up a placeholder by name.
func (t *Template) Field(name string) (TemplateField, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return TemplateField{}, false
}

// JSONSchema describes the data shape the template expects.
func (t *Template) JSONSchema() map[string]any {
	props := make(map[string]any, len(t.Fields))
	required := []string{}
	for _, f := range t.Fields {
		p := map[string]any{}
		switch f.Type {
		case TypeDate:
			p["type"] = "string"
			p["format"] = "date"
		case "":
			p["type"] = "string"
		default:
			p["type"] = string(f.Type)
		}
		if f.Description != "" {
			p["description"] = f.Description
		}
		props[f.Name] = p
		if f.Required {
			required = append(required, f.Name)
		}
	}
	return map[string]any{
		"$schema":    "http://json-schema.org/draft-07/schema#",
		"title":      t.Name,
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// Validate checks applied data against JSONSchema. Missing placeholders are
// left out before validation, so only present values are type-checked and
// absent required fields are reported.
func (t *Template) Validate(data map[string]any) error {
	t.schemaOnce.Do(func() {
		t.schema, t.schemaErr = compileJSONSchema(t.ID+".schema.json", t.JSONSchema())
	})
	if t.schemaErr != nil {
		return t.schemaErr
	}
	present := make(map[string]any, len(data))
	for k, v := range data {
		if !IsMissing(v) {
			present[k] = v
		}
	}
	b, err := json.Marshal(present)
	if err != nil {
		return err
	}
	return validateJSON(t.schema, b)
}

func (t *Template) check() error {
	if t.ID == "" {
		return fmt.Errorf("%w: template without id", ErrInvalidRequest)
	}
	if len(t.Fields) == 0 {
		return fmt.Errorf("%w: template %q declares no fields", ErrInvalidRequest, t.ID)
	}
	seen := map[string]bool{}
	for _, f := range t.Fields {
		if seen[f.Name] {
			return fmt.Errorf("%w: template %q declares %q twice", ErrInvalidRequest, t.ID, f.Name)
		}
		seen[f.Name] = true
	}
	if strings.TrimSpace(t.Markup) == "" {
		return fmt.Errorf("%w: template %q has no markup", ErrInvalidRequest, t.ID)
	}
	return nil
}

// Registry looks templates up by id and lists them by category.
type Registry interface {
	Get(ctx context.Context, id string) (*Template, error)
	List(ctx context.Context, category string) ([]*Template, error)
}

// MemoryRegistry is a Registry held in memory. Safe for concurrent use.
type MemoryRegistry struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewMemoryRegistry returns a registry seeded with templates.
func NewMemoryRegistry(templates ...*Template) (*MemoryRegistry, error) {
	r := &MemoryRegistry{templates: make(map[string]*Template, len(templates))}
	for _, t := range templates {
		if err := r.Add(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add registers or replaces a template.
func (r *MemoryRegistry) Add(t *Template) error {
	if err := t.check(); err != nil {
		return err
	}
	if t.Name == "" {
		t.Name = t.ID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[t.ID] = t
	return nil
}

// Get implements Registry.
func (r *MemoryRegistry) Get(_ context.Context, id string) (*Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTemplateNotFound, id)
	}
	return t, nil
}

// List implements Registry. An empty category lists everything. Results are
// ordered by id.
func (r *MemoryRegistry) List(_ context.Context, category string) ([]*Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Template, 0, len(r.templates))
	for _, t := range r.templates {
		if category == "" || t.Category == category {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// DefaultRegistry returns a fresh registry holding the built-in templates.
func DefaultRegistry() (*MemoryRegistry, error) {
	return LoadRegistryFS(builtinTemplates, "templates")
}

// LoadRegistryFS reads every *.yaml descriptor under dir. Markup comes from
// the descriptor's markup key, its markup_file, or "<id>.twig" next to it.
func LoadRegistryFS(fsys fs.FS, dir string) (*MemoryRegistry, error) {
	r := &MemoryRegistry{templates: map[string]*Template{}}
	err := fs.WalkDir(fsys, dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		ext := path.Ext(p)
		if d.IsDir() || (ext != ".yaml" && ext != ".yml") {
			return nil
		}
		t, err := readTemplate(fsys, p)
		if err != nil {
			return fmt.Errorf("read %s: %w", p, err)
		}
		return r.Add(t)
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func readTemplate(fsys fs.FS, p string) (*Template, error) {
	raw, err := fs.ReadFile(fsys, p)
	if err != nil {
		return nil, err
	}
	t := &Template{}
	if err := yaml.Unmarshal(raw, t); err != nil {
		return nil, err
	}
	base := strings.TrimSuffix(path.Base(p), path.Ext(p))
	if t.ID == "" {
		t.ID = base
	}
	if t.Markup != "" {
		return t, nil
	}
	markupFile := t.MarkupFile
	if markupFile == "" {
		markupFile = base + ".twig"
	}
	markup, err := fs.ReadFile(fsys, path.Join(path.Dir(p), markupFile))
	if err != nil {
		return nil, fmt.Errorf("markup: %w", err)
	}
	t.Markup = string(markup)
	return t, nil
}
