package catalog

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/toolbox/internal/record"
)

type Op string

const (
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Event describes one committed mutation.
type Event struct {
	Op       Op
	Name     string
	Modified float64
}

// Notifier is told about committed mutations. It is called with the
// catalog's write lock held and must not call back into the catalog.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

// Updater is anything that accepts records, such as another Catalog.
type Updater interface {
	Update(ctx context.Context, rec record.Record, opts ...UpdateOption) error
}
