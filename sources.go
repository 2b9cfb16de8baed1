package autodoc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// RecordSource fetches one record by id from an external store.
type RecordSource interface {
	Fetch(ctx context.Context, recordID string) (map[string]any, error)
}

// Sources maps source ids to record sources.
type Sources map[string]RecordSource

// Fetch resolves sourceID and fetches recordID from it.
func (s Sources) Fetch(ctx context.Context, sourceID, recordID string) (map[string]any, error) {
	src, ok := s[sourceID]
	if !ok {
		return nil, fmt.Errorf("%w: unknown source %q", ErrNotFound, sourceID)
	}
	if recordID == "" {
		return nil, fmt.Errorf("%w: recordId is required with sourceId", ErrInvalidRequest)
	}
	return src.Fetch(ctx, recordID)
}

// JSONFileSource reads <Dir>/<recordID>.json.
type JSONFileSource struct {
	Dir string
}

// Fetch implements RecordSource.
func (s JSONFileSource) Fetch(ctx context.Context, recordID string) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if recordID != filepath.Base(recordID) || recordID == "." || recordID == ".." {
		return nil, fmt.Errorf("%w: record id %q", ErrInvalidRequest, recordID)
	}
	b, err := os.ReadFile(filepath.Join(s.Dir, recordID+".json"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: record %s", ErrNotFound, recordID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSource, err)
	}
	return ParseRecord(b)
}

// normalizeRecordValue turns driver values into the shapes ParseRecord
// produces, so every source feeds the same inference rules.
func normalizeRecordValue(v any) any {
	switch x := v.(type) {
	case nil, string, bool, json.Number:
		return x
	case []byte:
		return string(x)
	case int:
		return json.Number(strconv.Itoa(x))
	case int16:
		return json.Number(strconv.FormatInt(int64(x), 10))
	case int32:
		return json.Number(strconv.FormatInt(int64(x), 10))
	case int64:
		return json.Number(strconv.FormatInt(x, 10))
	case float32:
		return json.Number(strconv.FormatFloat(float64(x), 'f', -1, 32))
	case float64:
		return json.Number(strconv.FormatFloat(x, 'f', -1, 64))
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format("2006-01-02")
		}
		return x.Format(time.RFC3339)
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, el := range x {
			out[k] = normalizeRecordValue(el)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, el := range x {
			out[i] = normalizeRecordValue(el)
		}
		return out
	}
	return fmt.Sprint(v)
}
