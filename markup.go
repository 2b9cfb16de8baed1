package autodoc

import (
	"encoding/json"
	"fmt"
	"html"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tyler-sommer/stick"
)

// RenderMarkup substitutes data into the template's Twig markup. Values
// are HTML-escaped before substitution; Missing values become a visible
// placeholder span.
func RenderMarkup(tpl *Template, data map[string]any) (string, error) {
	env := stick.New(nil)
	ctx := make(map[string]stick.Value, len(data)+1)
	for k, v := range data {
		ctx[k] = markupValue(v)
	}
	ctx["template_id"] = html.EscapeString(tpl.ID)

	var out strings.Builder
	if err := env.Execute(tpl.Markup, &out, ctx); err != nil {
		return "", fmt.Errorf("%w: template %s: %v", ErrRender, tpl.ID, err)
	}
	return out.String(), nil
}

func markupValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case Missing:
		return fmt.Sprintf(`<span class="autodoc-missing" data-field="%s">%s</span>`,
			html.EscapeString(x.Field), html.EscapeString(x.String()))
	case []any:
		return markupList(x)
	case map[string]any:
		return markupDefinitions(x)
	}
	return html.EscapeString(scalarText(v))
}

func scalarText(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		if x {
			return "yes"
		}
		return "no"
	case time.Time:
		return x.Format("2006-01-02")
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}

// markupList renders arrays of objects as a table and everything else as
// a comma separated list.
func markupList(items []any) string {
	var rows []map[string]any
	for _, it := range items {
		if m, ok := it.(map[string]any); ok {
			rows = append(rows, m)
		}
	}
	if len(rows) == 0 {
		parts := make([]string, 0, len(items))
		for _, it := range items {
			parts = append(parts, html.EscapeString(scalarText(it)))
		}
		return strings.Join(parts, ", ")
	}

	colSet := map[string]bool{}
	for _, r := range rows {
		for k := range r {
			colSet[k] = true
		}
	}
	cols := make([]string, 0, len(colSet))
	for k := range colSet {
		cols = append(cols, k)
	}
	sort.Strings(cols)

	var b strings.Builder
	b.WriteString(`<table class="autodoc-items"><thead><tr>`)
	for _, c := range cols {
		b.WriteString("<th>" + html.EscapeString(c) + "</th>")
	}
	b.WriteString("</tr></thead><tbody>")
	for _, r := range rows {
		b.WriteString("<tr>")
		for _, c := range cols {
			b.WriteString("<td>" + html.EscapeString(scalarText(r[c])) + "</td>")
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</tbody></table>")
	return b.String()
}

func markupDefinitions(m map[string]any) string {
	var b strings.Builder
	b.WriteString(`<dl class="autodoc-object">`)
	for _, k := range sortedKeys(m) {
		b.WriteString("<dt>" + html.EscapeString(k) + "</dt><dd>" + html.EscapeString(scalarText(m[k])) + "</dd>")
	}
	b.WriteString("</dl>")
	return b.String()
}
