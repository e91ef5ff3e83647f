// Package backends assembles the table of storage backends the entry points
// can open by name.
package backends

import (
	"fmt"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/toolbox/internal/storage"
	"github.com/Adithya-Monish-Kumar-K/toolbox/internal/storage/badger"
	"github.com/Adithya-Monish-Kumar-K/toolbox/internal/storage/file"
	"github.com/Adithya-Monish-Kumar-K/toolbox/internal/storage/nop"
	"github.com/Adithya-Monish-Kumar-K/toolbox/internal/storage/postgres"
	"github.com/Adithya-Monish-Kumar-K/toolbox/internal/storage/redis"
	"github.com/Adithya-Monish-Kumar-K/toolbox/internal/storage/sqlite"
	apperrors "github.com/Adithya-Monish-Kumar-K/toolbox/pkg/errors"
)

// Default returns a fresh name → factory map of every built-in backend.
func Default() map[string]storage.Factory {
	m := make(map[string]storage.Factory)
	for _, f := range []storage.Factory{
		nop.Factory(),
		file.Factory(),
		postgres.Factory(),
		redis.Factory(),
		sqlite.Factory(),
		badger.Factory(),
	} {
		m[f.Name] = f
	}
	return m
}

// Names lists the factories in sorted order.
func Names(factories map[string]storage.Factory) []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the named factory or an ErrUnknownBackend error listing
// the choices.
func Lookup(factories map[string]storage.Factory, name string) (storage.Factory, error) {
	f, ok := factories[name]
	if !ok {
		return storage.Factory{}, fmt.Errorf("%w %q (choose from: %v)", apperrors.ErrUnknownBackend, name, Names(factories))
	}
	return f, nil
}
