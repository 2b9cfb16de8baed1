package autodoc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

// dateLayouts are tried in order when deciding whether a string is a date.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006/01/02",
	"01/02/2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"02-Jan-2006",
}

// ParseRecord decodes a raw JSON record. Numbers stay json.Number so
// identifiers like "00123" and large integers survive unchanged.
func ParseRecord(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaInference, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after record", ErrSchemaInference)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: record must be a JSON object, got %T", ErrSchemaInference, v)
	}
	return m, nil
}

// InferSchema walks record and returns one descriptor per leaf. Keys are
// visited in lexical order. Arrays of objects contribute the leaves of their
// first element, flagged IsArray; arrays of primitives are a single leaf.
func InferSchema(record map[string]any) *DiscoveredSchema {
	var fields []FieldDescriptor
	seen := map[string]bool{}

	add := func(fd FieldDescriptor) {
		if seen[fd.Path] {
			return
		}
		seen[fd.Path] = true
		fields = append(fields, fd)
	}

	var walk func(obj map[string]any, parent string, inArray bool)
	walk = func(obj map[string]any, parent string, inArray bool) {
		for _, key := range sortedKeys(obj) {
			path := joinKey(parent, key)
			switch v := obj[key].(type) {
			case map[string]any:
				if len(v) == 0 {
					add(FieldDescriptor{Name: key, Path: path, Type: TypeObject, IsArray: inArray})
					continue
				}
				walk(v, path, inArray)
			case []any:
				if first, ok := firstObject(v); ok {
					walk(first, path, true)
					continue
				}
				add(FieldDescriptor{Name: key, Path: path, Type: TypeArray, SampleValue: v, IsArray: inArray})
			default:
				add(FieldDescriptor{Name: key, Path: path, Type: inferType(v), SampleValue: v, IsArray: inArray})
			}
		}
	}
	walk(record, "", false)
	return newDiscoveredSchema(fields)
}

func firstObject(arr []any) (map[string]any, bool) {
	if len(arr) == 0 {
		return nil, false
	}
	m, ok := arr[0].(map[string]any)
	return m, ok && len(m) > 0
}

func inferType(v any) FieldType {
	switch x := v.(type) {
	case bool:
		return TypeBoolean
	case json.Number, float64, float32, int, int32, int64, uint, uint32, uint64:
		return TypeNumber
	case time.Time:
		return TypeDate
	case string:
		if _, ok := parseDate(x); ok {
			return TypeDate
		}
	}
	return TypeString
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if len(s) < 6 {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// helpers
func joinKey(parent, child string) string {
	if parent == "" {
		return child
	}
	return parent + "." + child
}
