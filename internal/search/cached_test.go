package search

import (
	"context"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/toolbox/pkg/metrics"
)

type countingIndex struct {
	Index
	mu      sync.Mutex
	queries int
}

func (c *countingIndex) Query(ctx context.Context, text string) ([]string, error) {
	c.mu.Lock()
	c.queries++
	c.mu.Unlock()
	return c.Index.Query(ctx, text)
}

func (c *countingIndex) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queries
}

func TestCachedServesRepeatQueries(t *testing.T) {
	inner := &countingIndex{Index: NewMemory()}
	m := metrics.NewNop()
	idx, err := NewCached(inner, 16, m)
	require.NoError(t, err)
	seed(t, idx)
	ctx := context.Background()

	first, err := idx.Query(ctx, "JSON")
	require.NoError(t, err)
	second, err := idx.Query(ctx, "  json ")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.count())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchCacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchCacheMisses))
}

func TestCachedInvalidatesOnWrite(t *testing.T) {
	inner := &countingIndex{Index: NewMemory()}
	idx, err := NewCached(inner, 16, nil)
	require.NoError(t, err)
	seed(t, idx)
	ctx := context.Background()

	got, err := idx.Query(ctx, "json")
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, got)

	require.NoError(t, idx.Delete(ctx, "alpha"))
	got, err = idx.Query(ctx, "json")
	require.NoError(t, err)
	assert.Equal(t, []string{"beta"}, got)
	assert.Equal(t, 2, inner.count())
}

func TestCachedResultsAreCopies(t *testing.T) {
	idx, err := NewCached(NewMemory(), 16, nil)
	require.NoError(t, err)
	seed(t, idx)
	ctx := context.Background()

	got, err := idx.Query(ctx, "json")
	require.NoError(t, err)
	got[0] = "mutated"

	again, err := idx.Query(ctx, "json")
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, again)
}

func TestNewCachedRejectsBadSize(t *testing.T) {
	_, err := NewCached(NewMemory(), 0, nil)
	assert.Error(t, err)
}

// gatedIndex blocks the first Query until release is closed.
type gatedIndex struct {
	countingIndex
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedIndex) Query(ctx context.Context, text string) ([]string, error) {
	names, err := g.countingIndex.Query(ctx, text)
	g.once.Do(func() {
		close(g.entered)
		<-g.release
	})
	return names, err
}

func TestCachedDropsResultsOverlappingAWrite(t *testing.T) {
	inner := &gatedIndex{
		countingIndex: countingIndex{Index: NewMemory()},
		entered:       make(chan struct{}),
		release:       make(chan struct{}),
	}
	idx, err := NewCached(inner, 16, nil)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, idx.Update(ctx, "alpha", map[string][]string{"description": {"json parser"}}))

	done := make(chan []string, 1)
	go func() {
		names, _ := idx.Query(ctx, "parser")
		done <- names
	}()
	<-inner.entered
	require.NoError(t, idx.Update(ctx, "beta", map[string][]string{"description": {"yaml parser"}}))
	close(inner.release)
	assert.Equal(t, []string{"alpha"}, <-done)

	got, err := idx.Query(ctx, "parser")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alpha", "beta"}, got)
	assert.Equal(t, 2, inner.count())
}
