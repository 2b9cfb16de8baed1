package autodoc

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLSource reads records from one table of a database/sql database,
// keyed by a single column.
type SQLSource struct {
	DB        *sql.DB
	Table     string
	KeyColumn string
}

// OpenSQLiteSource opens a SQLite database file with the pure Go driver.
func OpenSQLiteSource(path, table, keyColumn string) (*SQLSource, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	return &SQLSource{DB: db, Table: table, KeyColumn: keyColumn}, nil
}

// Close closes the underlying database.
func (s *SQLSource) Close() error { return s.DB.Close() }

// Fetch implements RecordSource.
func (s *SQLSource) Fetch(ctx context.Context, recordID string) (map[string]any, error) {
	q := fmt.Sprintf("SELECT * FROM %s WHERE %s = ? LIMIT 1", quoteIdent(s.Table), quoteIdent(s.KeyColumn))
	rows, err := s.DB.QueryContext(ctx, q, recordID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSource, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSource, err)
	}
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSource, err)
		}
		return nil, fmt.Errorf("%w: %s %s=%s", ErrNotFound, s.Table, s.KeyColumn, recordID)
	}

	vals := make([]any, len(cols))
	scans := make([]any, len(cols))
	for i := range vals {
		scans[i] = &vals[i]
	}
	if err := rows.Scan(scans...); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSource, err)
	}
	rec := make(map[string]any, len(cols))
	for i, c := range cols {
		rec[c] = normalizeRecordValue(vals[i])
	}
	return rec, rows.Err()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
