// Package sqlite stores projects as JSON documents in an embedded SQLite
// database, using the pure-Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/Adithya-Monish-Kumar-K/toolbox/internal/record"
	"github.com/Adithya-Monish-Kumar-K/toolbox/internal/storage"
	apperrors "github.com/Adithya-Monish-Kumar-K/toolbox/pkg/errors"
)

const schema = `CREATE TABLE IF NOT EXISTS documents (
	id   TEXT PRIMARY KEY,
	body TEXT NOT NULL
)`

type Store struct {
	mu     sync.Mutex
	db     *sql.DB
	path   string
	logger *slog.Logger
}

func New(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &apperrors.BackendUnavailableError{Backend: "sqlite", Target: path, Err: err}
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &apperrors.BackendUnavailableError{Backend: "sqlite", Target: path, Err: err}
	}
	// One writer connection keeps pragmas and locking simple.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, &apperrors.BackendUnavailableError{Backend: "sqlite", Target: path, Err: fmt.Errorf("%s: %w", p, err)}
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, &apperrors.BackendUnavailableError{Backend: "sqlite", Target: path, Err: err}
	}
	return &Store{
		db:     db,
		path:   path,
		logger: slog.Default().With("component", "sqlite-store", "path", path),
	}, nil
}

func (s *Store) Load(ctx context.Context) ([]record.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id, body FROM documents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var recs []record.Record
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		rec, err := storage.DecodeDocument(id, []byte(body))
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	s.logger.Info("loaded projects", "count", len(recs))
	return recs, nil
}

func (s *Store) Save(ctx context.Context, rec record.Record) error {
	body, err := storage.EncodeDocument(rec)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (id, body) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET body = excluded.body`,
		rec.Name(), string(body))
	if err != nil {
		return fmt.Errorf("saving project %s: %w", rec.Name(), err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, name); err != nil {
		return fmt.Errorf("deleting project %s: %w", name, err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func Factory() storage.Factory {
	return storage.Factory{
		Name:        "sqlite",
		Description: "JSON documents in an embedded SQLite database",
		Options: []storage.Option{
			{Name: "path", Default: "toolbox.db", Help: "database file"},
		},
		Open: func(ctx context.Context, opts storage.Options) (storage.Adapter, error) {
			return New(ctx, opts.String("path"))
		},
	}
}

var _ storage.Adapter = (*Store)(nil)
