// Package badger keeps projects in an embedded Badger key-value store under
// keys of the form project/<name>.
package badger

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/Adithya-Monish-Kumar-K/toolbox/internal/record"
	"github.com/Adithya-Monish-Kumar-K/toolbox/internal/storage"
	apperrors "github.com/Adithya-Monish-Kumar-K/toolbox/pkg/errors"
)

const keyPrefix = "project/"

type slogAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*slogAdapter)(nil)

func (a *slogAdapter) Errorf(msg string, items ...any) {
	a.logger.Error(fmt.Sprintf(msg, items...))
}

func (a *slogAdapter) Warningf(msg string, items ...any) {
	a.logger.Warn(fmt.Sprintf(msg, items...))
}

// Badger's info chatter goes to debug.
func (a *slogAdapter) Infof(msg string, items ...any) {
	a.logger.Debug(fmt.Sprintf(msg, items...))
}

func (a *slogAdapter) Debugf(msg string, items ...any) {
	a.logger.Debug(fmt.Sprintf(msg, items...))
}

type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

// New opens the store in dir, or purely in memory when inMemory is set.
func New(dir string, inMemory bool) (*Store, error) {
	logger := slog.Default().With("component", "badger-store")
	var opts badger.Options
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &apperrors.BackendUnavailableError{Backend: "badger", Target: dir, Err: err}
		}
		opts = badger.DefaultOptions(dir)
		logger = logger.With("directory", dir)
	}
	opts.Logger = &slogAdapter{logger: logger}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, &apperrors.BackendUnavailableError{Backend: "badger", Target: dir, Remedy: "is another process holding the directory?", Err: err}
	}
	return &Store{db: db, logger: logger}, nil
}

func key(name string) []byte {
	return []byte(keyPrefix + name)
}

// Load returns projects ordered by name, as the keys sort.
func (s *Store) Load(ctx context.Context) ([]record.Record, error) {
	var recs []record.Record
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			id := string(item.Key())
			err := item.Value(func(val []byte) error {
				rec, err := storage.DecodeDocument(id, val)
				if err != nil {
					return err
				}
				recs = append(recs, rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("loaded projects", "count", len(recs))
	return recs, nil
}

func (s *Store) Save(_ context.Context, rec record.Record) error {
	doc, err := storage.EncodeDocument(rec)
	if err != nil {
		return err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(rec.Name()), doc)
	})
	if err != nil {
		return fmt.Errorf("saving project %s: %w", rec.Name(), err)
	}
	return nil
}

func (s *Store) Delete(_ context.Context, name string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key(name))
	})
	if err != nil {
		return fmt.Errorf("deleting project %s: %w", name, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func Factory() storage.Factory {
	return storage.Factory{
		Name:        "badger",
		Description: "embedded Badger key-value store",
		Options: []storage.Option{
			{Name: "directory", Default: "toolbox-badger", Help: "data directory"},
			{Name: "in_memory", Default: "false", Help: "keep everything in memory"},
		},
		Open: func(_ context.Context, opts storage.Options) (storage.Adapter, error) {
			inMemory, err := opts.Bool("in_memory")
			if err != nil {
				return nil, err
			}
			return New(opts.String("directory"), inMemory)
		},
	}
}

var _ storage.Adapter = (*Store)(nil)
