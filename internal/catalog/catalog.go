// Package catalog is the indexed in-memory project catalog. It keeps the
// primary record map, an exact-match inverted index over the classifier
// fields and a free-text search index in step, and writes every change
// through to a storage adapter.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/toolbox/internal/catalog/index"
	"github.com/Adithya-Monish-Kumar-K/toolbox/internal/record"
	"github.com/Adithya-Monish-Kumar-K/toolbox/internal/search"
	"github.com/Adithya-Monish-Kumar-K/toolbox/internal/storage"
	apperrors "github.com/Adithya-Monish-Kumar-K/toolbox/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/toolbox/pkg/metrics"
)

// Catalog is safe for concurrent use. One RWMutex guards the record map,
// the field index and the known-field set together; writers also hold it
// across the search-index and adapter calls, so writes are serialized.
type Catalog struct {
	mu      sync.RWMutex
	records map[string]record.Record
	index   *index.FieldIndex
	known   map[string]struct{}

	fixed    []string
	required []string
	reserved map[string]struct{}

	// names the adapter returned on the last load
	persisted map[string]struct{}

	adapter  storage.Adapter
	search   search.Index
	notifier Notifier
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// Query selects projects. Search ranks by relevance; every Match entry
// must hold exactly for a project to be returned.
type Query struct {
	Search string
	Match  map[string]string
}

// New builds a catalog over adapter and idx and loads whatever the adapter
// already holds.
func New(ctx context.Context, adapter storage.Adapter, idx search.Index, opts ...Option) (*Catalog, error) {
	c := &Catalog{
		records:   make(map[string]record.Record),
		index:     index.New(),
		known:     make(map[string]struct{}),
		persisted: make(map[string]struct{}),
		required:  slices.Clone(record.DefaultRequired),
		adapter:   adapter,
		search:    idx,
		logger:    slog.Default().With("component", "catalog"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.reserved = map[string]struct{}{record.FieldModified: {}}
	for _, f := range c.required {
		c.reserved[f] = struct{}{}
	}
	if _, err := c.Load(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Fields returns the configured field set, or the discovered one sorted.
func (c *Catalog) Fields() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fieldsLocked()
}

func (c *Catalog) fieldsLocked() []string {
	if c.fixed != nil {
		return slices.Clone(c.fixed)
	}
	out := make([]string, 0, len(c.known))
	for f := range c.known {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func (c *Catalog) indexedLocked(field string) bool {
	if c.fixed != nil {
		return slices.Contains(c.fixed, field)
	}
	_, ok := c.known[field]
	return ok
}

// Projects returns every project name, sorted.
func (c *Catalog) Projects() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.namesLocked()
}

func (c *Catalog) namesLocked() []string {
	names := make([]string, 0, len(c.records))
	for n := range c.records {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// Project returns a copy of the named project.
func (c *Catalog) Project(name string) (record.Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.records[name]
	if !ok {
		return record.Record{}, false
	}
	return rec.Clone(), true
}

// FieldIndex returns value → sorted names for one indexed field. ok is
// false when the field is not indexed.
func (c *Catalog) FieldIndex(field string) (map[string][]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.indexedLocked(field) {
		return nil, false
	}
	return c.index.Snapshot(field), true
}

// Update validates rec and replaces the stored project of the same name.
// An update identical to the stored project does nothing. Errors from the
// search index or the adapter are returned after the in-memory state has
// already changed.
func (c *Catalog) Update(ctx context.Context, rec record.Record, opts ...UpdateOption) error {
	var o updateOptions
	for _, opt := range opts {
		opt(&o)
	}
	_, err := c.update(ctx, rec.Clone(), o)
	return err
}

func (c *Catalog) update(ctx context.Context, rec record.Record, o updateOptions) (bool, error) {
	op := "update"
	if o.load {
		op = "load"
	}
	if missing := rec.Missing(c.required); len(missing) > 0 {
		c.countUpdate(op, "invalid")
		return false, &apperrors.ValidationError{Name: rec.Name(), Missing: missing}
	}
	name := rec.Name()

	c.mu.Lock()
	defer c.mu.Unlock()

	if prev, ok := c.records[name]; ok && prev.Equal(rec, o.load && rec.Modified != 0) {
		c.countUpdate(op, "noop")
		return false, nil
	}
	if !o.load || rec.Modified == 0 {
		rec.Stamp(c.now())
	}

	if c.fixed == nil {
		for f := range rec.Fields {
			if _, skip := c.reserved[f]; !skip {
				c.known[f] = struct{}{}
			}
		}
	}
	fields := c.fieldsLocked()
	for _, f := range fields {
		if v, ok := rec.Fields[f]; ok {
			c.index.Set(f, name, v.Values())
		} else {
			c.index.Remove(f, name)
		}
	}
	c.records[name] = rec
	c.setRecordGauge()

	var errs []error
	searchFields := append(slices.Clone(c.required), fields...)
	if err := c.search.Update(ctx, name, rec.SearchFields(searchFields)); err != nil {
		errs = append(errs, fmt.Errorf("indexing project %s: %w", name, err))
	}
	if !o.load {
		if err := c.adapter.Save(ctx, rec.Clone()); err != nil {
			errs = append(errs, fmt.Errorf("saving project %s: %w", name, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		c.countUpdate(op, "error")
		c.logger.Error("update failed", "name", name, "error", err)
		return true, err
	}

	c.countUpdate(op, "applied")
	c.logger.Debug("project updated", "name", name, "load", o.load)
	if !o.load && c.notifier != nil {
		c.notifier.Notify(ctx, Event{Op: OpUpdate, Name: name, Modified: rec.Modified})
	}
	return true, nil
}

// Delete removes the named project and reports whether it existed. With
// AsLoad the removal already happened in storage: it is neither written
// through nor announced.
func (c *Catalog) Delete(ctx context.Context, name string, opts ...UpdateOption) (bool, error) {
	var o updateOptions
	for _, opt := range opts {
		opt(&o)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.removeLocked(ctx, name, o.load)
}

func (c *Catalog) removeLocked(ctx context.Context, name string, load bool) (bool, error) {
	op := "delete"
	if load {
		op = "unload"
	}
	if _, ok := c.records[name]; !ok {
		return false, nil
	}
	delete(c.records, name)
	delete(c.persisted, name)
	c.index.RemoveAll(name)
	c.setRecordGauge()

	var errs []error
	if err := c.search.Delete(ctx, name); err != nil {
		errs = append(errs, fmt.Errorf("unindexing project %s: %w", name, err))
	}
	if !load {
		if err := c.adapter.Delete(ctx, name); err != nil {
			errs = append(errs, fmt.Errorf("deleting project %s: %w", name, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		c.countUpdate(op, "error")
		c.logger.Error("delete failed", "name", name, "error", err)
		return true, err
	}

	c.countUpdate(op, "applied")
	c.logger.Debug("project deleted", "name", name, "load", load)
	if !load && c.notifier != nil {
		c.notifier.Notify(ctx, Event{Op: OpDelete, Name: name})
	}
	return true, nil
}

// Get runs q. With a search text, results follow relevance order and the
// Match filters only prune; without one, results are sorted by name.
func (c *Catalog) Get(ctx context.Context, q Query) ([]record.Record, error) {
	start := time.Now()
	kind := queryKind(q)

	var ranked []string
	if q.Search != "" {
		var err error
		ranked, err = c.search.Query(ctx, q.Search)
		if err != nil {
			return nil, fmt.Errorf("searching %q: %w", q.Search, err)
		}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var candidates []string
	if q.Search != "" {
		seen := make(map[string]struct{}, len(ranked))
		for _, name := range ranked {
			if _, live := c.records[name]; !live {
				continue
			}
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			candidates = append(candidates, name)
		}
	} else {
		candidates = c.seedLocked(q.Match)
	}

	for field, value := range q.Match {
		if !c.indexedLocked(field) {
			candidates = nil
			break
		}
		kept := candidates[:0]
		for _, name := range candidates {
			if c.index.Contains(field, value, name) {
				kept = append(kept, name)
			}
		}
		candidates = kept
	}

	out := make([]record.Record, 0, len(candidates))
	for _, name := range candidates {
		out = append(out, c.records[name].Clone())
	}
	c.observeQuery(kind, start, len(out))
	return out, nil
}

// seedLocked picks the starting candidates for a query without search
// text: the smallest matching bucket, or every name.
func (c *Catalog) seedLocked(match map[string]string) []string {
	if len(match) == 0 {
		return c.namesLocked()
	}
	var (
		best  string
		value string
		size  = -1
	)
	for f, v := range match {
		if !c.indexedLocked(f) {
			return nil
		}
		n := c.index.Len(f, v)
		if size < 0 || n < size || (n == size && f < best) {
			best, value, size = f, v, n
		}
	}
	return c.index.Names(best, value)
}

// ExportTo feeds every project, in name order, to dst.Update. It stops at
// the first failure; dst keeps whatever it already accepted.
func (c *Catalog) ExportTo(ctx context.Context, dst Updater) error {
	c.mu.RLock()
	recs := make([]record.Record, 0, len(c.records))
	for _, name := range c.namesLocked() {
		recs = append(recs, c.records[name].Clone())
	}
	c.mu.RUnlock()

	for i, rec := range recs {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("export interrupted after %d projects: %w", i, err)
		}
		if err := dst.Update(ctx, rec); err != nil {
			return fmt.Errorf("exporting project %s after %d projects: %w", rec.Name(), i, err)
		}
	}
	c.logger.Info("export complete", "count", len(recs))
	return nil
}

// RenameFieldValue rewrites from to to in field across every project that
// holds it, as a set member or as the whole scalar. It returns how many
// projects changed.
func (c *Catalog) RenameFieldValue(ctx context.Context, field, from, to string) (int, error) {
	if from == to {
		return 0, nil
	}
	recs, err := c.Get(ctx, Query{Match: map[string]string{field: from}})
	if err != nil {
		return 0, err
	}
	changed := 0
	for _, rec := range recs {
		v, ok := rec.Fields[field]
		if !ok || !v.Contains(from) {
			continue
		}
		rec.Set(field, v.Replace(from, to))
		if err := c.Update(ctx, rec); err != nil {
			return changed, fmt.Errorf("renaming %s=%s in project %s: %w", field, from, rec.Name(), err)
		}
		changed++
	}
	c.logger.Info("renamed field value", "field", field, "from", from, "to", to, "projects", changed)
	return changed, nil
}

// Load pulls every record from the adapter through the load path and
// returns how many changed the catalog. Projects an earlier load saw that
// the adapter no longer returns are dropped. A malformed or invalid record
// aborts the load before anything is dropped.
func (c *Catalog) Load(ctx context.Context) (int, error) {
	recs, err := c.adapter.Load(ctx)
	if err != nil {
		c.countLoad("error")
		return 0, fmt.Errorf("loading projects: %w", err)
	}
	applied := 0
	seen := make(map[string]struct{}, len(recs))
	for _, rec := range recs {
		ok, err := c.update(ctx, rec.Clone(), updateOptions{load: true})
		if err != nil {
			c.countLoad("error")
			return applied, fmt.Errorf("loading project %q: %w", rec.Name(), err)
		}
		seen[rec.Name()] = struct{}{}
		if ok {
			applied++
		}
	}

	dropped, err := c.dropUnseen(ctx, seen)
	applied += dropped
	if err != nil {
		c.countLoad("error")
		return applied, err
	}
	c.countLoad("ok")
	c.logger.Info("catalog loaded", "records", len(recs), "applied", applied, "dropped", dropped)
	return applied, nil
}

// dropUnseen removes projects that were persisted at the last load but are
// missing from seen. Projects never returned by the adapter are kept, so a
// write-only adapter never empties the catalog.
func (c *Catalog) dropUnseen(ctx context.Context, seen map[string]struct{}) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var gone []string
	for name := range c.persisted {
		if _, ok := seen[name]; !ok {
			gone = append(gone, name)
		}
	}
	sort.Strings(gone)
	c.persisted = seen

	dropped := 0
	for _, name := range gone {
		removed, err := c.removeLocked(ctx, name, true)
		if removed {
			dropped++
		}
		if err != nil {
			return dropped, fmt.Errorf("dropping project %q: %w", name, err)
		}
	}
	return dropped, nil
}

// Close releases the search index and the adapter.
func (c *Catalog) Close() error {
	return errors.Join(c.search.Close(), c.adapter.Close())
}

func queryKind(q Query) string {
	switch {
	case q.Search != "" && len(q.Match) > 0:
		return "fused"
	case q.Search != "":
		return "text"
	case len(q.Match) > 0:
		return "filter"
	default:
		return "all"
	}
}

func (c *Catalog) countUpdate(op, result string) {
	if c.metrics != nil {
		c.metrics.CatalogUpdatesTotal.WithLabelValues(op, result).Inc()
	}
}

func (c *Catalog) countLoad(status string) {
	if c.metrics != nil {
		c.metrics.CatalogLoadsTotal.WithLabelValues(status).Inc()
	}
}

func (c *Catalog) setRecordGauge() {
	if c.metrics != nil {
		c.metrics.CatalogRecords.Set(float64(len(c.records)))
	}
}

func (c *Catalog) observeQuery(kind string, start time.Time, results int) {
	if c.metrics == nil {
		return
	}
	c.metrics.CatalogQueriesTotal.WithLabelValues(kind).Inc()
	c.metrics.CatalogQueryLatency.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	c.metrics.CatalogQueryResults.Observe(float64(results))
}
