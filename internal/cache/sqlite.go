// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/cvat2labelme/internal/convert"
	"github.com/pdiddy/cvat2labelme/pkg/types"
)

// SQLiteStore is a Store persisted in a SQLite database file.
type SQLiteStore struct {
	db         *sql.DB
	maxEntries int
	now        func() time.Time
}

// NewSQLiteStore opens or creates the cache database at cfg.Path and
// creates the schema if it does not exist.
func NewSQLiteStore(cfg types.CacheConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("cache path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	s := &SQLiteStore{
		db:         db,
		maxEntries: cfg.MaxEntries,
		now:        time.Now,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return s, nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS results (
			key TEXT PRIMARY KEY,
			file_count INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS result_files (
			key TEXT NOT NULL REFERENCES results(key) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			name TEXT NOT NULL,
			body BLOB NOT NULL,
			PRIMARY KEY (key, position)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_results_created_at ON results(created_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (*convert.Result, bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT file_count FROM results WHERE key = ?`, key).Scan(&count)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("looking up %s: %w", key, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT name, body FROM result_files WHERE key = ? ORDER BY position`, key)
	if err != nil {
		return nil, false, fmt.Errorf("reading files for %s: %w", key, err)
	}
	defer rows.Close()

	files := make([]convert.File, 0, count)
	for rows.Next() {
		var f convert.File
		if err := rows.Scan(&f.Name, &f.Data); err != nil {
			return nil, false, fmt.Errorf("scanning file row: %w", err)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterating file rows: %w", err)
	}
	if len(files) != count {
		return nil, false, fmt.Errorf("entry %s is incomplete: %d of %d files", key, len(files), count)
	}

	return convert.NewResult(files...), true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, key string, res *convert.Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM results WHERE key = ?`, key); err != nil {
		return fmt.Errorf("replacing %s: %w", key, err)
	}

	files := res.Files()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO results (key, file_count, created_at) VALUES (?, ?, ?)`,
		key, len(files), s.now().UnixNano(),
	); err != nil {
		return fmt.Errorf("inserting %s: %w", key, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO result_files (key, position, name, body) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing file insert: %w", err)
	}
	defer stmt.Close()

	for i, f := range files {
		if _, err := stmt.ExecContext(ctx, key, i, f.Name, f.Data); err != nil {
			return fmt.Errorf("inserting file %s: %w", f.Name, err)
		}
	}

	if s.maxEntries > 0 {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM results WHERE key NOT IN (
				SELECT key FROM results ORDER BY created_at DESC, key LIMIT ?
			)`, s.maxEntries,
		); err != nil {
			return fmt.Errorf("pruning cache: %w", err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM results`); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*), coalesce(sum(file_count), 0) FROM results`,
	).Scan(&st.Entries, &st.Files)
	if err != nil {
		return Stats{}, fmt.Errorf("reading cache stats: %w", err)
	}
	return st, nil
}
