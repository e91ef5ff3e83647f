package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetAndSnapshot(t *testing.T) {
	ix := New()
	ix.Set("tags", "alpha", []string{"x", "y"})
	ix.Set("tags", "beta", []string{"y"})

	assert.Equal(t, map[string][]string{"x": {"alpha"}, "y": {"alpha", "beta"}}, ix.Snapshot("tags"))
	assert.True(t, ix.Contains("tags", "x", "alpha"))
	assert.False(t, ix.Contains("tags", "x", "beta"))
	assert.Equal(t, 2, ix.Len("tags", "y"))
	assert.Equal(t, []string{"alpha", "beta"}, ix.Names("tags", "y"))
	assert.Equal(t, []string{"tags"}, ix.Fields())
}

func TestSetReplacesAndPrunes(t *testing.T) {
	ix := New()
	ix.Set("tags", "alpha", []string{"x", "y"})
	ix.Set("tags", "alpha", []string{"z"})

	assert.Equal(t, map[string][]string{"z": {"alpha"}}, ix.Snapshot("tags"))
	assert.Equal(t, []string{"z"}, ix.Values("tags", "alpha"))
}

func TestRemoveAllPrunesEmptyBuckets(t *testing.T) {
	ix := New()
	ix.Set("tags", "alpha", []string{"x", "y"})
	ix.Set("tags", "beta", []string{"y"})
	ix.Set("language", "alpha", []string{"go"})

	ix.RemoveAll("alpha")

	assert.Equal(t, map[string][]string{"y": {"beta"}}, ix.Snapshot("tags"))
	assert.Empty(t, ix.Snapshot("language"))
	assert.NotNil(t, ix.Snapshot("language"))
	assert.Equal(t, []string{"tags"}, ix.Fields())
	assert.Empty(t, ix.Values("tags", "alpha"))
}

func TestSetEmptyOnlyRemoves(t *testing.T) {
	ix := New()
	ix.Set("tags", "alpha", []string{"x"})
	ix.Set("tags", "alpha", nil)
	assert.Empty(t, ix.Snapshot("tags"))
	assert.Empty(t, ix.Fields())
}

func TestSnapshotIsACopy(t *testing.T) {
	ix := New()
	ix.Set("tags", "alpha", []string{"x"})
	snap := ix.Snapshot("tags")
	snap["x"][0] = "mutated"
	snap["new"] = []string{"beta"}

	assert.Equal(t, map[string][]string{"x": {"alpha"}}, ix.Snapshot("tags"))
}

func TestRemoveUnknownIsNoop(t *testing.T) {
	ix := New()
	ix.Remove("tags", "ghost")
	ix.RemoveAll("ghost")
	assert.Empty(t, ix.Fields())
}
