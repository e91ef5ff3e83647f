package bleve

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/toolbox/internal/search"
)

func seed(t *testing.T, idx *Index) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, idx.Update(ctx, "alpha", map[string][]string{
		"name":        {"alpha"},
		"description": {"JSON parser"},
		"tags":        {"encoding", "json"},
	}))
	require.NoError(t, idx.Update(ctx, "beta", map[string][]string{
		"name":        {"beta"},
		"description": {"fast JSON tool"},
	}))
	require.NoError(t, idx.Update(ctx, "gamma", map[string][]string{
		"name":        {"gamma"},
		"description": {"image resizing"},
	}))
}

func TestQueryMatchesAcrossFields(t *testing.T) {
	idx, err := New("")
	require.NoError(t, err)
	defer idx.Close()
	seed(t, idx)

	got, err := idx.Query(context.Background(), "json")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alpha", "beta"}, got)

	got, err = idx.Query(context.Background(), "resizing")
	require.NoError(t, err)
	assert.Equal(t, []string{"gamma"}, got)
}

func TestUpdateAndDelete(t *testing.T) {
	idx, err := New("")
	require.NoError(t, err)
	defer idx.Close()
	seed(t, idx)
	ctx := context.Background()

	require.NoError(t, idx.Update(ctx, "alpha", map[string][]string{"description": {"yaml loader"}}))
	require.NoError(t, idx.Delete(ctx, "beta"))

	got, err := idx.Query(ctx, "json")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = idx.Query(ctx, "yaml")
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha"}, got)
}

func TestEmptyQuery(t *testing.T) {
	idx, err := New("")
	require.NoError(t, err)
	defer idx.Close()
	seed(t, idx)

	got, err := idx.Query(context.Background(), "  ")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReopenOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "search.bleve")
	idx, err := New(path)
	require.NoError(t, err)
	seed(t, idx)
	require.NoError(t, idx.Close())

	idx, err = New(path)
	require.NoError(t, err)
	defer idx.Close()
	got, err := idx.Query(context.Background(), "image")
	require.NoError(t, err)
	assert.Equal(t, []string{"gamma"}, got)
}

func TestClosed(t *testing.T) {
	idx, err := New("")
	require.NoError(t, err)
	require.NoError(t, idx.Close())
	require.NoError(t, idx.Close())

	_, err = idx.Query(context.Background(), "json")
	assert.ErrorIs(t, err, search.ErrClosed)
}
