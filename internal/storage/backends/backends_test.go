package backends

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/toolbox/pkg/errors"
)

func TestDefaultNames(t *testing.T) {
	assert.Equal(t, []string{"badger", "file", "memory", "postgres", "redis", "sqlite"}, Names(Default()))
}

func TestDefaultReturnsFreshMaps(t *testing.T) {
	a := Default()
	delete(a, "file")
	assert.Contains(t, Default(), "file")
}

func TestLookup(t *testing.T) {
	f, err := Lookup(Default(), "memory")
	require.NoError(t, err)
	a, err := f.OpenWith(context.Background(), nil)
	require.NoError(t, err)
	recs, err := a.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, recs)

	_, err = Lookup(Default(), "couchdb")
	require.ErrorIs(t, err, apperrors.ErrUnknownBackend)
	assert.Contains(t, err.Error(), "couchdb")
}

func TestEveryOptionHasHelp(t *testing.T) {
	for name, f := range Default() {
		for _, o := range f.Options {
			assert.NotEmpty(t, o.Help, "%s option %s", name, o.Name)
		}
	}
}
