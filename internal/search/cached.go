package search

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/toolbox/pkg/metrics"
)

// Cached memoizes Query results of an inner index. Every Update or Delete
// purges the cache, and concurrent identical queries share one call to the
// inner index.
type Cached struct {
	inner      Index
	cache      *lru.Cache[string, []string]
	group      singleflight.Group
	generation atomic.Uint64
	// mu makes a purge and a generation-checked Add mutually exclusive.
	mu sync.Mutex
	metrics    *metrics.Metrics
}

// NewCached wraps inner with an LRU of the given size. m may be nil.
func NewCached(inner Index, size int, m *metrics.Metrics) (*Cached, error) {
	cache, err := lru.New[string, []string](size)
	if err != nil {
		return nil, fmt.Errorf("creating search cache: %w", err)
	}
	return &Cached{inner: inner, cache: cache, metrics: m}, nil
}

func (c *Cached) Update(ctx context.Context, name string, fields map[string][]string) error {
	defer c.invalidate()
	return c.inner.Update(ctx, name, fields)
}

func (c *Cached) Delete(ctx context.Context, name string) error {
	defer c.invalidate()
	return c.inner.Delete(ctx, name)
}

func (c *Cached) Query(ctx context.Context, text string) ([]string, error) {
	key := normalizeQuery(text)
	if names, ok := c.cache.Get(key); ok {
		c.hit()
		return slices.Clone(names), nil
	}
	c.miss()

	gen := c.generation.Load()
	val, err, _ := c.group.Do(fmt.Sprintf("%d|%s", gen, key), func() (any, error) {
		names, err := c.inner.Query(ctx, text)
		if err != nil {
			return nil, err
		}
		c.store(gen, key, names)
		return names, nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(val.([]string)), nil
}

func (c *Cached) Close() error {
	c.invalidate()
	return c.inner.Close()
}

func (c *Cached) store(gen uint64, key string, names []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation.Load() == gen {
		c.cache.Add(key, names)
	}
}

func (c *Cached) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation.Add(1)
	c.cache.Purge()
}

func (c *Cached) hit() {
	if c.metrics != nil {
		c.metrics.SearchCacheHits.Inc()
	}
}

func (c *Cached) miss() {
	if c.metrics != nil {
		c.metrics.SearchCacheMisses.Inc()
	}
}

func normalizeQuery(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

var _ Index = (*Cached)(nil)
