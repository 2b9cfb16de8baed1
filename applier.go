package autodoc

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Missing stands in for a placeholder that no source field fills.
type Missing struct {
	Field string
}

func (m Missing) String() string {
	return "[missing: " + m.Field + "]"
}

// MarshalJSON keeps the sentinel visible in JSON output.
func (m Missing) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"missing": true, "field": m.Field})
}

// IsMissing reports whether v is the missing sentinel.
func IsMissing(v any) bool {
	_, ok := v.(Missing)
	return ok
}

// Apply builds the flat placeholder data for fields from record. Every
// declared field is present in the result; unmapped ones hold Missing.
// A mapped path that no longer resolves is ErrMapping.
func Apply(mapping MappingResult, record map[string]any, fields []TemplateField) (map[string]any, error) {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		c, ok := mapping.Mappings[f.Name]
		if !ok {
			out[f.Name] = Missing{Field: f.Name}
			continue
		}
		v, ok := resolvePath(record, c.SourceFieldPath)
		if !ok {
			return nil, fmt.Errorf("%w: field %s: path %q not found in record", ErrMapping, f.Name, c.SourceFieldPath)
		}
		out[f.Name] = coerce(v, f.Type)
	}
	return out, nil
}

// resolvePath walks a dot path. Keys that themselves contain dots are
// found by trying the shortest key first and backtracking. Arrays map the
// rest of the path over their elements.
func resolvePath(v any, path string) (any, bool) {
	if path == "" {
		return v, true
	}
	switch x := v.(type) {
	case map[string]any:
		for i := 0; i < len(path); i++ {
			if path[i] != '.' {
				continue
			}
			if child, ok := x[path[:i]]; ok {
				if r, ok := resolvePath(child, path[i+1:]); ok {
					return r, true
				}
			}
		}
		child, ok := x[path]
		return child, ok
	case []any:
		var out []any
		for _, el := range x {
			if r, ok := resolvePath(el, path); ok {
				out = append(out, r)
			}
		}
		return out, len(out) > 0
	}
	return nil, false
}

// coerce converts v only when the declared type differs from the inferred
// one. Declared dates are always written as YYYY-MM-DD. Failed conversions
// keep the raw value.
func coerce(v any, want FieldType) any {
	if want == "" || v == nil {
		return v
	}
	if want == TypeDate {
		switch x := v.(type) {
		case time.Time:
			return x.Format("2006-01-02")
		case string:
			if t, ok := parseDate(x); ok {
				return t.Format("2006-01-02")
			}
		}
		return v
	}
	got := inferType(v)
	if _, isArr := v.([]any); isArr {
		got = TypeArray
	}
	if got == want {
		return v
	}

	switch want {
	case TypeNumber:
		if s, ok := v.(string); ok {
			if f, err := strconv.ParseFloat(stripNumber(s), 64); err == nil {
				return f
			}
		}
	case TypeString:
		switch x := v.(type) {
		case json.Number:
			return x.String()
		case float64:
			return strconv.FormatFloat(x, 'f', -1, 64)
		case bool:
			return strconv.FormatBool(x)
		case time.Time:
			return x.Format("2006-01-02")
		case int, int64:
			return fmt.Sprint(x)
		}
	case TypeBoolean:
		if s, ok := v.(string); ok {
			switch strings.ToLower(strings.TrimSpace(s)) {
			case "true", "yes", "y", "1", "on":
				return true
			case "false", "no", "n", "0", "off":
				return false
			}
		}
	}
	return v
}

var thousandsGrouped = regexp.MustCompile(`^[-+]?\d{1,3}(,\d{3})+(\.\d+)?$`)

// stripNumber removes currency symbols, currency codes, spaces and
// thousands-grouping commas. Any other comma leaves an unparsable string,
// so "12,50" or "1.234,56" keep their raw value.
func stripNumber(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Sc, r) || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	s = strings.TrimFunc(s, unicode.IsLetter)
	if strings.Contains(s, ",") {
		if !thousandsGrouped.MatchString(s) {
			return ""
		}
		s = strings.ReplaceAll(s, ",", "")
	}
	return s
}
