package autodoc

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/xuri/excelize/v2"
)

// XLSXSource treats a worksheet as a table: the first row holds the keys
// and record ids are 1-based data row numbers.
type XLSXSource struct {
	Path  string
	Sheet string // empty selects the first sheet
}

// Fetch implements RecordSource.
func (s XLSXSource) Fetch(ctx context.Context, recordID string) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n, err := strconv.Atoi(recordID)
	if err != nil || n < 1 {
		return nil, fmt.Errorf("%w: row id %q must be a positive integer", ErrInvalidRequest, recordID)
	}

	f, err := excelize.OpenFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrSource, s.Path, err)
	}
	defer f.Close()

	sheet := s.Sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: sheet %q: %v", ErrSource, sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: sheet %q has no header row", ErrSchemaInference, sheet)
	}
	if n >= len(rows) {
		return nil, fmt.Errorf("%w: row %d of sheet %q", ErrNotFound, n, sheet)
	}

	header, data := rows[0], rows[n]
	rec := make(map[string]any, len(header))
	for i, key := range header {
		key = strings.TrimSpace(key)
		if key == "" || i >= len(data) || data[i] == "" {
			continue
		}
		rec[key] = cellValue(data[i])
	}
	return rec, nil
}

// cellValue keeps identifiers with leading zeros as text.
func cellValue(s string) any {
	t := strings.TrimSpace(s)
	if len(t) > 1 && t[0] == '0' && !strings.HasPrefix(t, "0.") {
		return s
	}
	hasLetters := strings.ContainsFunc(t, func(r rune) bool {
		return unicode.IsLetter(r) && r != 'e' && r != 'E'
	})
	if _, err := strconv.ParseFloat(t, 64); err == nil && !hasLetters {
		return json.Number(t)
	}
	switch strings.ToUpper(t) {
	case "TRUE":
		return true
	case "FALSE":
		return false
	}
	return s
}
