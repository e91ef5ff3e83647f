package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/toolbox/internal/record"
	apperrors "github.com/Adithya-Monish-Kumar-K/toolbox/pkg/errors"
)

func newStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "db", "toolbox.db")
	s, err := New(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestRoundTripAcrossReopen(t *testing.T) {
	s, path := newStore(t)
	ctx := context.Background()

	rec := record.New("beta", "second", "http://b")
	rec.Set("tags", record.Multi("cli", "json"))
	rec.Modified = 1700000000.5
	require.NoError(t, s.Save(ctx, rec))
	require.NoError(t, s.Save(ctx, record.New("alpha", "first", "http://a")))
	require.NoError(t, s.Close())

	reopened, err := New(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	recs, err := reopened.Load(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "alpha", recs[0].Name())
	assert.True(t, rec.Equal(recs[1], true))
}

func TestSaveOverwritesAndDelete(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, record.New("alpha", "v1", "u")))
	require.NoError(t, s.Save(ctx, record.New("alpha", "v2", "u")))
	recs, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	desc, _ := recs[0].Fields["description"].Str()
	assert.Equal(t, "v2", desc)

	require.NoError(t, s.Delete(ctx, "alpha"))
	require.NoError(t, s.Delete(ctx, "alpha"))
	recs, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestLoadMalformedDocument(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	_, err := s.db.ExecContext(ctx, `INSERT INTO documents (id, body) VALUES ('broken', '{"project": {"name": 1}}')`)
	require.NoError(t, err)

	_, err = s.Load(ctx)
	require.ErrorIs(t, err, apperrors.ErrMalformedRecord)
	assert.Contains(t, err.Error(), "broken")
}
