// Package provenance persists a record of each organized run and its
// resolved sample entities for later diagnostics.
package provenance

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/me/runsheet/pkg/model"

	_ "modernc.org/sqlite"
)

// Store writes run and entity rows to SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// New opens (or creates) the provenance database at dbPath. Use ":memory:"
// for tests.
func New(dbPath string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	return &Store{db: db, logger: logger.With("component", "provenance")}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Migrate creates the required tables.
func (s *Store) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id         TEXT PRIMARY KEY,
			run_sheet  TEXT NOT NULL,
			created_at TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS entities (
			id          TEXT PRIMARY KEY,
			run_id      TEXT NOT NULL REFERENCES runs(id),
			description TEXT NOT NULL,
			record      TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_entities_run ON entities(run_id);
	`)
	return err
}

// StoreRun inserts a run row and returns its generated ID.
func (s *Store) StoreRun(ctx context.Context, runSheet string) (string, error) {
	id := uuid.NewString()
	s.logger.Debug("sql", "op", "insert", "table", "runs", "id", id)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, run_sheet, created_at) VALUES (?, ?, ?)`,
		id, runSheet, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("store run: %w", err)
	}
	return id, nil
}

// StoreEntity inserts one resolved record under a run and returns the
// entity ID.
func (s *Store) StoreEntity(ctx context.Context, runID string, rec *model.SampleRecord) (string, error) {
	id := uuid.NewString()
	summary, err := json.Marshal(map[string]any{
		"description":  rec.Description,
		"lane":         rec.Lane,
		"genome_build": rec.GenomeBuild,
		"files":        rec.Files,
		"metadata":     rec.Metadata,
		"algorithm":    rec.Algorithm,
	})
	if err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}
	s.logger.Debug("sql", "op", "insert", "table", "entities", "id", id, "sample", rec.Description)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO entities (id, run_id, description, record) VALUES (?, ?, ?, ?)`,
		id, runID, rec.Description, string(summary))
	if err != nil {
		return "", fmt.Errorf("store entity: %w", err)
	}
	return id, nil
}

// Entities returns the descriptions recorded for a run, in insertion order.
func (s *Store) Entities(ctx context.Context, runID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT description FROM entities WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
