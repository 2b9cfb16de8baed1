package autodoc

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	reg, err := DefaultRegistry()
	require.NoError(t, err)

	all, err := reg.List(t.Context(), "")
	require.NoError(t, err)
	ids := make([]string, len(all))
	for i, tpl := range all {
		ids[i] = tpl.ID
		assert.NotEmpty(t, tpl.Markup, tpl.ID)
		assert.NotEmpty(t, tpl.Fields, tpl.ID)
	}
	assert.Equal(t, []string{"invoice", "quote", "receipt", "work_order"}, ids)

	wo, err := reg.Get(t.Context(), "work_order")
	require.NoError(t, err)
	assert.Equal(t, "Field Work Order", wo.Name)
	assert.Equal(t, []string{"work_order_number", "customer_name", "scheduled_date"}, wo.FieldNames()[:3])
	assert.Equal(t, map[string]bool{"work_order_number": true, "customer_name": true, "scheduled_date": true}, wo.RequiredSet())

	f, ok := wo.Field("scheduled_date")
	require.True(t, ok)
	assert.Equal(t, TypeDate, f.Type)

	invoices, err := reg.List(t.Context(), "invoice")
	require.NoError(t, err)
	require.Len(t, invoices, 1)

	_, err = reg.Get(t.Context(), "memo")
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestLoadRegistryFS(t *testing.T) {
	fsys := fstest.MapFS{
		"tpl/pet.yaml": {Data: []byte(`
name: Pet Card
category: pet
fields:
  - pet_name,required
  - name: birthday
    type: date
`)},
		"tpl/pet.twig": {Data: []byte(`<p>{{ pet_name }} born {{ birthday }}</p>`)},
		"tpl/inline.yml": {Data: []byte(`
id: inline_card
fields: [title]
markup: "<h1>{{ title }}</h1>"
`)},
		"tpl/README.md": {Data: []byte("ignored")},
	}
	reg, err := LoadRegistryFS(fsys, "tpl")
	require.NoError(t, err)

	pet, err := reg.Get(t.Context(), "pet")
	require.NoError(t, err)
	assert.Equal(t, "pet", pet.Category)
	assert.Contains(t, pet.Markup, "{{ pet_name }}")
	assert.Equal(t, []TemplateField{
		{Name: "pet_name", Type: TypeString, Required: true},
		{Name: "birthday", Type: TypeDate},
	}, pet.Fields)

	inline, err := reg.Get(t.Context(), "inline_card")
	require.NoError(t, err)
	assert.Equal(t, "inline_card", inline.Name)
}

func TestLoadRegistryFS_Errors(t *testing.T) {
	tests := []struct {
		name string
		fsys fstest.MapFS
	}{
		{"missing markup", fstest.MapFS{"t/a.yaml": {Data: []byte("fields: [x]")}}},
		{"no fields", fstest.MapFS{"t/a.yaml": {Data: []byte(`markup: "<p></p>"`)}}},
		{"duplicate field", fstest.MapFS{"t/a.yaml": {Data: []byte("fields: [x, x]\nmarkup: \"<p></p>\"")}}},
		{"bad field type", fstest.MapFS{"t/a.yaml": {Data: []byte("fields: [\"x,type=money\"]\nmarkup: \"<p></p>\"")}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadRegistryFS(tt.fsys, "t")
			assert.Error(t, err)
		})
	}
}

func TestTemplate_JSONSchemaAndValidate(t *testing.T) {
	tpl := &Template{ID: "wo", Name: "WO", Fields: []TemplateField{
		{Name: "number", Type: TypeString, Required: true},
		{Name: "scheduled", Type: TypeDate, Required: true},
		{Name: "total", Type: TypeNumber},
	}}

	schema := tpl.JSONSchema()
	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, []string{"number", "scheduled"}, schema["required"])
	props := schema["properties"].(map[string]any)
	assert.Equal(t, map[string]any{"type": "string", "format": "date"}, props["scheduled"])

	assert.NoError(t, tpl.Validate(map[string]any{"number": "A-1", "scheduled": "2024-01-15", "total": 12.5}))
	assert.Error(t, tpl.Validate(map[string]any{"number": "A-1", "scheduled": Missing{Field: "scheduled"}}),
		"missing required field")
	assert.Error(t, tpl.Validate(map[string]any{"number": "A-1", "scheduled": "2024-01-15", "total": "lots"}),
		"wrong type")
}

func TestMemoryRegistry_Add(t *testing.T) {
	reg, err := NewMemoryRegistry()
	require.NoError(t, err)
	require.Error(t, reg.Add(&Template{Fields: []TemplateField{{Name: "x"}}, Markup: "x"}))
	require.NoError(t, reg.Add(&Template{ID: "a", Fields: []TemplateField{{Name: "x"}}, Markup: "{{ x }}"}))
	list, err := reg.List(t.Context(), "")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
