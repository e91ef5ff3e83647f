// Package nop is the memory-only backend: nothing is persisted.
package nop

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/toolbox/internal/record"
	"github.com/Adithya-Monish-Kumar-K/toolbox/internal/storage"
)

type Store struct{}

func New() *Store { return &Store{} }

func (*Store) Load(context.Context) ([]record.Record, error) { return nil, nil }

func (*Store) Save(context.Context, record.Record) error { return nil }

func (*Store) Delete(context.Context, string) error { return nil }

func (*Store) Close() error { return nil }

func Factory() storage.Factory {
	return storage.Factory{
		Name:        "memory",
		Description: "keep projects in memory only",
		Open: func(context.Context, storage.Options) (storage.Adapter, error) {
			return New(), nil
		},
	}
}

var _ storage.Adapter = (*Store)(nil)
