// Package postgres provides the Postgres-backed analysis record store.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/audithq/site-auditor/internal/audit"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// RecordStoreConfig controls the Postgres connection pool used for analysis
// records.
type RecordStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// RecordStore persists merged analysis records in Postgres. The single-
// statement upsert keeps partial merges atomic: two sibling tasks completing
// in the same window cannot duplicate rows or drop each other's fields.
type RecordStore struct {
	pool  pgxIface
	table string
}

// NewRecordStore creates a Postgres-backed RecordStore using the provided config.
func NewRecordStore(ctx context.Context, cfg RecordStoreConfig) (*RecordStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "analysis_records"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &RecordStore{pool: pool, table: table}, nil
}

// NewRecordStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewRecordStoreWithPool(pool pgxIface, table string) (*RecordStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "analysis_records"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &RecordStore{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *RecordStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// UpsertResult writes one analyzer's output into the (userID, url) record.
// Only the column matching typ is bound non-null, so COALESCE preserves the
// sibling analyzers' fields on conflict.
func (s *RecordStore) UpsertResult(
	ctx context.Context,
	userID, url string,
	typ audit.AnalyzerType,
	title string,
	result json.RawMessage,
) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("record store is not configured")
	}
	if !typ.Valid() {
		return fmt.Errorf("unknown analyzer type %q", typ)
	}
	var structural, content, technical []byte
	switch typ {
	case audit.AnalyzerStructural:
		structural = result
	case audit.AnalyzerContent:
		content = result
	case audit.AnalyzerTechnical:
		technical = result
	}
	query := fmt.Sprintf(`
INSERT INTO %s (user_id, url, title, structural, content, technical, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, now(), now())
ON CONFLICT (user_id, url) DO UPDATE SET
	title = EXCLUDED.title,
	structural = COALESCE(EXCLUDED.structural, %[1]s.structural),
	content = COALESCE(EXCLUDED.content, %[1]s.content),
	technical = COALESCE(EXCLUDED.technical, %[1]s.technical),
	updated_at = now()
`, s.table)
	if _, err := s.pool.Exec(ctx, query, userID, url, title, structural, content, technical); err != nil {
		return fmt.Errorf("upsert analysis record: %w", err)
	}
	return nil
}

// Get loads the merged record for (userID, url). Absence maps to
// audit.ErrNotFound so the read side can flag it rather than fail.
func (s *RecordStore) Get(ctx context.Context, userID, url string) (audit.Record, error) {
	if s == nil || s.pool == nil {
		return audit.Record{}, fmt.Errorf("record store is not configured")
	}
	query := fmt.Sprintf(`
SELECT user_id, url, title, structural, content, technical, created_at, updated_at
FROM %s
WHERE user_id = $1 AND url = $2
`, s.table)
	var rec audit.Record
	var structural, content, technical []byte
	err := s.pool.QueryRow(ctx, query, userID, url).Scan(
		&rec.UserID,
		&rec.URL,
		&rec.Title,
		&structural,
		&content,
		&technical,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return audit.Record{}, audit.ErrNotFound
		}
		return audit.Record{}, fmt.Errorf("query analysis record: %w", err)
	}
	rec.Structural = structural
	rec.Content = content
	rec.Technical = technical
	return rec, nil
}
