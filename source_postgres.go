package autodoc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresConfig describes where PostgresSource reads from.
type PostgresConfig struct {
	DSN         string
	Table       string // may be schema qualified: "billing.invoices"
	KeyColumn   string
	MaxConns    int32
	DialTimeout time.Duration
}

// PostgresSource reads records from one PostgreSQL table.
type PostgresSource struct {
	pool  *pgxpool.Pool
	table pgx.Identifier
	key   pgx.Identifier
}

// OpenPostgresSource connects a pool and checks the connection.
func OpenPostgresSource(ctx context.Context, cfg PostgresConfig, logger *slog.Logger) (*PostgresSource, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "autodoc"

	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	logger.Debug("postgres source connected", "table", cfg.Table)
	return &PostgresSource{
		pool:  pool,
		table: pgx.Identifier(strings.Split(cfg.Table, ".")),
		key:   pgx.Identifier{cfg.KeyColumn},
	}, nil
}

// Close releases the pool.
func (s *PostgresSource) Close() { s.pool.Close() }

// Fetch implements RecordSource.
func (s *PostgresSource) Fetch(ctx context.Context, recordID string) (map[string]any, error) {
	q := fmt.Sprintf("SELECT * FROM %s WHERE %s::text = $1 LIMIT 1", s.table.Sanitize(), s.key.Sanitize())
	rows, err := s.pool.Query(ctx, q, recordID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSource, err)
	}
	row, err := pgx.CollectOneRow(rows, pgx.RowToMap)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s %s=%s", ErrNotFound, s.table.Sanitize(), s.key.Sanitize(), recordID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSource, err)
	}
	rec := make(map[string]any, len(row))
	for k, v := range row {
		rec[k] = normalizePgValue(v)
	}
	return rec, nil
}

func normalizePgValue(v any) any {
	switch x := v.(type) {
	case pgtype.Numeric:
		f, err := x.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return json.Number(strconv.FormatFloat(f.Float64, 'f', -1, 64))
	case [16]byte:
		return uuid.UUID(x).String()
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, el := range x {
			out[k] = normalizePgValue(el)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, el := range x {
			out[i] = normalizePgValue(el)
		}
		return out
	}
	return normalizeRecordValue(v)
}
