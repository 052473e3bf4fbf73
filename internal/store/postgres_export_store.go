package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dunamismax/pixelresize/internal/domain"
	_ "github.com/lib/pq"
)

const exportSchemaSQL = `
CREATE TABLE IF NOT EXISTS exports (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	format TEXT NOT NULL,
	quality INTEGER NOT NULL DEFAULT 0,
	width INTEGER NOT NULL,
	height INTEGER NOT NULL,
	source_bytes BIGINT NOT NULL,
	output_bytes BIGINT NOT NULL,
	object_key TEXT NOT NULL DEFAULT '',
	compute_time_ms BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS exports_session_id_idx ON exports (session_id);
`

// PostgresExportStore is an append-only log of finished exports. Writing
// an id that is already present keeps the first row.
type PostgresExportStore struct {
	db *sql.DB
}

func NewPostgresExportStore(ctx context.Context, dsn string) (*PostgresExportStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &PostgresExportStore{db: db}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *PostgresExportStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, exportSchemaSQL); err != nil {
		return fmt.Errorf("ensure exports schema: %w", err)
	}
	return nil
}

func (s *PostgresExportStore) Close() error {
	return s.db.Close()
}

func (s *PostgresExportStore) CreateExportRecord(ctx context.Context, record domain.ExportRecord) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO exports (id, session_id, format, quality, width, height, source_bytes, output_bytes, object_key, compute_time_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (id) DO NOTHING`,
		record.ID,
		record.SessionID,
		string(record.Format),
		record.Quality,
		record.Width,
		record.Height,
		record.SourceBytes,
		record.OutputBytes,
		record.ObjectKey,
		record.ComputeTime.Milliseconds(),
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert export %s: %w", record.ID, err)
	}
	return nil
}

