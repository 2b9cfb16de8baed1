package autodoc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderMarkup(t *testing.T) {
	tpl := &Template{
		ID:     "card",
		Markup: `<h1>{{ title }}</h1><p>{{ owner }}</p><i>{{ template_id }}</i>`,
	}
	out, err := RenderMarkup(tpl, map[string]any{
		"title": `Tom & Jerry's <script>alert(1)</script>`,
		"owner": Missing{Field: "owner"},
	})
	require.NoError(t, err)

	assert.Contains(t, out, "<h1>Tom &amp; Jerry&#39;s &lt;script&gt;alert(1)&lt;/script&gt;</h1>")
	assert.Contains(t, out, `<span class="autodoc-missing" data-field="owner">[missing: owner]</span>`)
	assert.Contains(t, out, "<i>card</i>")
	assert.NotContains(t, out, "<script>")
}

func TestRenderMarkup_Values(t *testing.T) {
	tests := []struct {
		name string
		v    any
		want string
	}{
		{"number", json.Number("12.50"), "12.50"},
		{"float", 3.25, "3.25"},
		{"bool", true, "yes"},
		{"nil", nil, ""},
		{"scalar list", []any{"a", "<b>"}, "a, &lt;b&gt;"},
		{
			"rows",
			[]any{map[string]any{"sku": "A", "qty": json.Number("2")}, map[string]any{"sku": "B"}},
			`<table class="autodoc-items"><thead><tr><th>qty</th><th>sku</th></tr></thead><tbody>` +
				`<tr><td>2</td><td>A</td></tr><tr><td></td><td>B</td></tr></tbody></table>`,
		},
		{"object", map[string]any{"city": "Oslo"}, `<dl class="autodoc-object"><dt>city</dt><dd>Oslo</dd></dl>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := RenderMarkup(&Template{ID: "t", Markup: "{{ v }}"}, map[string]any{"v": tt.v})
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestRenderMarkup_BadTemplate(t *testing.T) {
	_, err := RenderMarkup(&Template{ID: "broken", Markup: "{% if %}"}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRender)
}

func TestRenderMarkup_BuiltinWorkOrder(t *testing.T) {
	reg, err := DefaultRegistry()
	require.NoError(t, err)
	tpl, err := reg.Get(t.Context(), "work_order")
	require.NoError(t, err)

	data := map[string]any{}
	for _, f := range tpl.Fields {
		data[f.Name] = Missing{Field: f.Name}
	}
	data["work_order_number"] = "FWO-2024-0523"
	data["customer_name"] = "Johnson Residence"

	out, err := RenderMarkup(tpl, data)
	require.NoError(t, err)
	assert.Contains(t, out, "Work Order FWO-2024-0523")
	assert.Contains(t, out, "Johnson Residence")
	assert.Contains(t, out, `data-field="technician"`)
}
