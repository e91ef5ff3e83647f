package catalog

import (
	"log/slog"
	"slices"
	"time"

	"github.com/Adithya-Monish-Kumar-K/toolbox/pkg/metrics"
)

// Option configures a Catalog at construction.
type Option func(*Catalog)

// WithFields fixes the indexed field set. Without it the set grows with
// every non-reserved field seen.
func WithFields(fields []string) Option {
	return func(c *Catalog) {
		if fields != nil {
			c.fixed = slices.Clone(fields)
		}
	}
}

// WithRequired replaces the required field list.
func WithRequired(fields []string) Option {
	return func(c *Catalog) {
		if len(fields) > 0 {
			c.required = slices.Clone(fields)
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Catalog) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Catalog) { c.metrics = m }
}

// WithNotifier receives an Event after every committed Update or Delete
// that is not part of a load.
func WithNotifier(n Notifier) Option {
	return func(c *Catalog) { c.notifier = n }
}

func WithClock(now func() time.Time) Option {
	return func(c *Catalog) {
		if now != nil {
			c.now = now
		}
	}
}

// UpdateOption modifies a single Update call.
type UpdateOption func(*updateOptions)

type updateOptions struct {
	load bool
}

// AsLoad marks the record as read back from storage: it is not written
// through, not announced, and a modified stamp it carries is kept.
func AsLoad() UpdateOption {
	return func(o *updateOptions) { o.load = true }
}
