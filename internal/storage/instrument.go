package storage

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/toolbox/internal/record"
	"github.com/Adithya-Monish-Kumar-K/toolbox/pkg/metrics"
)

type instrumented struct {
	Adapter
	backend string
	metrics *metrics.Metrics
}

// Instrument counts every operation of a into storage_operations_total
// under the backend label.
func Instrument(a Adapter, backend string, m *metrics.Metrics) Adapter {
	if m == nil {
		return a
	}
	return &instrumented{Adapter: a, backend: backend, metrics: m}
}

func (i *instrumented) Load(ctx context.Context) ([]record.Record, error) {
	recs, err := i.Adapter.Load(ctx)
	i.metrics.StorageOp(i.backend, "load", err)
	return recs, err
}

func (i *instrumented) Save(ctx context.Context, rec record.Record) error {
	err := i.Adapter.Save(ctx, rec)
	i.metrics.StorageOp(i.backend, "save", err)
	return err
}

func (i *instrumented) Delete(ctx context.Context, name string) error {
	err := i.Adapter.Delete(ctx, name)
	i.metrics.StorageOp(i.backend, "delete", err)
	return err
}

// Unwrap returns the decorated adapter.
func (i *instrumented) Unwrap() Adapter {
	return i.Adapter
}
