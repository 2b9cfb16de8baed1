package autodoc

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// TemplateField is one placeholder declared by a template.
type TemplateField struct {
	Name        string    `json:"name" yaml:"name"`
	Type        FieldType `json:"type,omitempty" yaml:"type,omitempty"`
	Required    bool      `json:"required,omitempty" yaml:"required,omitempty"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
}

// parseFieldDecl reads the compact form used in template descriptors.
// Supported forms:
// - "name" → optional string
// - "name,required" or "name,optional"
// - "name,date" → bare type name
// - "name,type=date,required" → any combination, in any order
func parseFieldDecl(decl string) (TemplateField, error) {
	items := strings.Split(decl, ",")
	f := TemplateField{Name: strings.TrimSpace(items[0]), Type: TypeString}
	if f.Name == "" {
		return f, fmt.Errorf("field declaration %q has no name", decl)
	}
	for _, raw := range items[1:] {
		item := strings.TrimSpace(raw)
		switch {
		case item == "":
			continue
		case item == "required":
			f.Required = true
		case item == "optional":
			f.Required = false
		case strings.HasPrefix(item, "type="):
			f.Type = FieldType(strings.TrimPrefix(item, "type="))
		case looksLikeType(item):
			f.Type = FieldType(item)
		default:
			return f, fmt.Errorf("field %q: unknown attribute %q", f.Name, item)
		}
	}
	if !f.Type.Valid() {
		return f, fmt.Errorf("field %q: unknown type %q", f.Name, f.Type)
	}
	return f, nil
}

func looksLikeType(s string) bool {
	return FieldType(s).Valid()
}

// UnmarshalYAML accepts either the compact string form or a full mapping.
func (f *TemplateField) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		parsed, err := parseFieldDecl(node.Value)
		if err != nil {
			return err
		}
		*f = parsed
		return nil
	}

	type plain TemplateField
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	if p.Name == "" {
		return fmt.Errorf("line %d: template field without name", node.Line)
	}
	if p.Type == "" {
		p.Type = TypeString
	}
	if !p.Type.Valid() {
		return fmt.Errorf("field %q: unknown type %q", p.Name, p.Type)
	}
	*f = TemplateField(p)
	return nil
}
