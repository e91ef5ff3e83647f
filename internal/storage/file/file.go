// Package file stores each project as one JSON file in a directory.
//
// File names are derived from project names but files loaded from disk keep
// whatever name they already had, so hand-written files are updated in
// place. A lock file in the directory serializes access between processes.
package file

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/toolbox/internal/record"
	"github.com/Adithya-Monish-Kumar-K/toolbox/internal/storage"
	apperrors "github.com/Adithya-Monish-Kumar-K/toolbox/pkg/errors"
)

const (
	lockFile      = ".toolbox.lock"
	ext           = ".json"
	maxSlug       = 64
	loadWorkers   = 8
	lockRetryWait = 20 * time.Millisecond
)

type Store struct {
	mu     sync.Mutex
	dir    string
	lock   *flock.Flock
	files  map[string]string
	logger *slog.Logger
}

// New opens dir, creating it when absent.
func New(dir string) (*Store, error) {
	info, err := os.Stat(dir)
	switch {
	case err == nil && !info.IsDir():
		return nil, &apperrors.BackendUnavailableError{
			Backend: "file",
			Target:  dir,
			Remedy:  "the path exists but is not a directory",
		}
	case errors.Is(err, fs.ErrNotExist):
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &apperrors.BackendUnavailableError{Backend: "file", Target: dir, Err: err}
		}
	case err != nil:
		return nil, &apperrors.BackendUnavailableError{Backend: "file", Target: dir, Err: err}
	}
	return &Store{
		dir:    dir,
		lock:   flock.New(filepath.Join(dir, lockFile)),
		files:  make(map[string]string),
		logger: slog.Default().With("component", "file-store", "directory", dir),
	}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// FileName derives the file a new project is written to: a slug of the
// name plus a hash of the exact name, so distinct names never collide.
func FileName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	slug := strings.TrimLeft(b.String(), ".")
	if len(slug) > maxSlug {
		slug = slug[:maxSlug]
	}
	if slug == "" {
		slug = "project"
	}
	h := fnv.New32a()
	h.Write([]byte(name))
	return fmt.Sprintf("%s-%08x%s", slug, h.Sum32(), ext)
}

func (s *Store) withLock(ctx context.Context, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	locked, err := s.lock.TryLockContext(ctx, lockRetryWait)
	if err != nil {
		return fmt.Errorf("locking %s: %w", s.dir, err)
	}
	if !locked {
		return fmt.Errorf("locking %s: %w", s.dir, apperrors.ErrTimeout)
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Warn("releasing directory lock failed", "error", err)
		}
	}()
	return fn()
}

// Load parses every *.json file in the directory, sorted by file name. The
// first unparsable file aborts the load.
func (s *Store) Load(ctx context.Context) ([]record.Record, error) {
	var recs []record.Record
	err := s.withLock(ctx, func() error {
		entries, err := os.ReadDir(s.dir)
		if err != nil {
			return &apperrors.BackendUnavailableError{Backend: "file", Target: s.dir, Err: err}
		}
		var names []string
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ext) || strings.HasPrefix(e.Name(), ".") {
				continue
			}
			names = append(names, e.Name())
		}

		parsed := make([]record.Record, len(names))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(loadWorkers)
		for i, fn := range names {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				data, err := os.ReadFile(filepath.Join(s.dir, fn))
				if err != nil {
					return fmt.Errorf("reading %s: %w", fn, err)
				}
				rec, err := record.Parse(data)
				if err != nil {
					return apperrors.Malformed(fn, err)
				}
				parsed[i] = rec
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		files := make(map[string]string, len(parsed))
		for i, rec := range parsed {
			files[rec.Name()] = names[i]
		}
		s.files = files
		recs = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("loaded projects", "count", len(recs))
	return recs, nil
}

func (s *Store) Save(ctx context.Context, rec record.Record) error {
	data, err := rec.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encoding project %s: %w", rec.Name(), err)
	}
	name := rec.Name()
	return s.withLock(ctx, func() error {
		fn, ok := s.files[name]
		if !ok {
			fn = FileName(name)
		}
		if err := writeAtomic(filepath.Join(s.dir, fn), append(data, '\n')); err != nil {
			return fmt.Errorf("saving project %s: %w", name, err)
		}
		s.files[name] = fn
		s.logger.Debug("saved project", "name", name, "file", fn)
		return nil
	})
}

func (s *Store) Delete(ctx context.Context, name string) error {
	return s.withLock(ctx, func() error {
		fn, ok := s.files[name]
		if !ok {
			fn = FileName(name)
		}
		err := os.Remove(filepath.Join(s.dir, fn))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("deleting project %s: %w", name, err)
		}
		delete(s.files, name)
		s.logger.Debug("deleted project", "name", name, "file", fn)
		return nil
	})
}

func (s *Store) Close() error {
	return nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func Factory() storage.Factory {
	return storage.Factory{
		Name:        "file",
		Description: "one JSON file per project in a directory",
		Options: []storage.Option{
			{Name: "directory", Default: "toolbox-data", Help: "directory holding the project files"},
		},
		Open: func(_ context.Context, opts storage.Options) (storage.Adapter, error) {
			return New(opts.String("directory"))
		},
	}
}

var _ storage.Adapter = (*Store)(nil)
