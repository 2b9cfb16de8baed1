package autodoc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseFieldDecl(t *testing.T) {
	tests := []struct {
		decl    string
		want    TemplateField
		wantErr bool
	}{
		{decl: "notes", want: TemplateField{Name: "notes", Type: TypeString}},
		{decl: "customer_name,required", want: TemplateField{Name: "customer_name", Type: TypeString, Required: true}},
		{decl: "scheduled_date,required,date", want: TemplateField{Name: "scheduled_date", Type: TypeDate, Required: true}},
		{decl: "total, type=number , optional", want: TemplateField{Name: "total", Type: TypeNumber}},
		{decl: "line_items,array,", want: TemplateField{Name: "line_items", Type: TypeArray}},
		{decl: ",required", wantErr: true},
		{decl: "x,mandatory", wantErr: true},
		{decl: "x,type=money", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.decl, func(t *testing.T) {
			got, err := parseFieldDecl(tt.decl)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTemplateField_UnmarshalYAML(t *testing.T) {
	var fields []TemplateField
	err := yaml.Unmarshal([]byte(`
- work_order_number,required
- name: notes
  description: free text
- name: total
  type: number
  required: true
`), &fields)
	require.NoError(t, err)
	assert.Equal(t, []TemplateField{
		{Name: "work_order_number", Type: TypeString, Required: true},
		{Name: "notes", Type: TypeString, Description: "free text"},
		{Name: "total", Type: TypeNumber, Required: true},
	}, fields)

	err = yaml.Unmarshal([]byte("- type: number\n"), &fields)
	assert.Error(t, err)
}
