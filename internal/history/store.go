// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package history keeps a SQLite log of completed conversions.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/pdf2md/pkg/types"
)

// DefaultLimit is the number of entries List returns when no limit is given.
const DefaultLimit = 20

// Entry is one recorded conversion.
type Entry struct {
	ID int64 `json:"id" yaml:"id"`
	types.ConversionResult
}

// Store manages the history database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the history database at path, creating its parent
// directory and the schema when missing.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS conversions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			input_path TEXT NOT NULL,
			input_sha256 TEXT NOT NULL,
			output_path TEXT NOT NULL,
			images_dir TEXT,
			backend TEXT NOT NULL,
			pages INTEGER NOT NULL,
			text_pages INTEGER NOT NULL,
			images INTEGER NOT NULL,
			skipped_images INTEGER NOT NULL,
			failed_images INTEGER NOT NULL,
			headings INTEGER NOT NULL,
			started_at TEXT NOT NULL,
			duration_ms INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversions_input_sha256 ON conversions(input_sha256)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Record appends res to the history and returns its row id.
func (s *Store) Record(ctx context.Context, res types.ConversionResult) (int64, error) {
	r, err := s.db.ExecContext(ctx,
		`INSERT INTO conversions (input_path, input_sha256, output_path, images_dir, backend,
			pages, text_pages, images, skipped_images, failed_images, headings, started_at, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.InputPath, res.InputSHA256, res.OutputPath, res.ImagesDir, string(res.Backend),
		res.Pages, res.TextPages, res.Images, res.SkippedImages, res.FailedImages, res.Headings,
		res.StartedAt.UTC().Format(time.RFC3339Nano), res.Duration.Milliseconds(),
	)
	if err != nil {
		return 0, fmt.Errorf("recording conversion of %s: %w", res.InputPath, err)
	}
	return r.LastInsertId()
}

// List returns up to limit entries, most recent first. A limit of zero or
// less means DefaultLimit.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, input_path, input_sha256, output_path, images_dir, backend,
			pages, text_pages, images, skipped_images, failed_images, headings, started_at, duration_ms
		 FROM conversions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			imagesDir  sql.NullString
			backend    string
			startedAt  string
			durationMS int64
		)
		if err := rows.Scan(&e.ID, &e.InputPath, &e.InputSHA256, &e.OutputPath, &imagesDir, &backend,
			&e.Pages, &e.TextPages, &e.Images, &e.SkippedImages, &e.FailedImages, &e.Headings,
			&startedAt, &durationMS); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		e.ImagesDir = imagesDir.String
		e.Backend = types.TextBackend(backend)
		e.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing started_at of entry %d: %w", e.ID, err)
		}
		e.Duration = time.Duration(durationMS) * time.Millisecond
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
