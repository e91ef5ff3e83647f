package redis

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/toolbox/internal/record"
	"github.com/Adithya-Monish-Kumar-K/toolbox/internal/storage"
	"github.com/Adithya-Monish-Kumar-K/toolbox/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/toolbox/pkg/errors"
)

func clearHash(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	fields, err := s.client.HGetAll(ctx, s.key)
	require.NoError(t, err)
	if len(fields) == 0 {
		return
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	require.NoError(t, s.client.HDel(ctx, s.key, names...))
}

func testStore(t *testing.T) *Store {
	t.Helper()
	addr := os.Getenv("TOOLBOX_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TOOLBOX_TEST_REDIS_ADDR not set")
	}
	s, err := New(context.Background(), config.RedisConfig{Addr: addr, Key: "toolbox:test:projects"})
	require.NoError(t, err)
	clearHash(t, s)
	t.Cleanup(func() {
		clearHash(t, s)
		s.Close()
	})
	return s
}

func TestConfigFromOptions(t *testing.T) {
	opts, err := storage.NewOptions(Options, map[string]string{"db": "3"})
	require.NoError(t, err)
	cfg, err := ConfigFrom(opts)
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", cfg.Addr)
	assert.Equal(t, 3, cfg.DB)
	assert.Equal(t, DefaultKey, cfg.Key)

	opts, err = storage.NewOptions(Options, OptionsFrom(cfg))
	require.NoError(t, err)
	again, err := ConfigFrom(opts)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestUnreachableServer(t *testing.T) {
	if testing.Short() {
		t.Skip("dials a closed port")
	}
	_, err := New(context.Background(), config.RedisConfig{Addr: "127.0.0.1:1"})
	require.ErrorIs(t, err, apperrors.ErrBackendUnavailable)
	assert.Contains(t, err.Error(), "127.0.0.1:1")
}

func TestRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	rec := record.New("alpha", "first", "http://a")
	rec.Modified = 7
	require.NoError(t, s.Save(ctx, rec))
	require.NoError(t, s.Save(ctx, record.New("beta", "second", "http://b")))

	recs, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "alpha", recs[0].Name())
	assert.True(t, rec.Equal(recs[0], true))

	require.NoError(t, s.Delete(ctx, "alpha"))
	require.NoError(t, s.Delete(ctx, "ghost"))
	recs, err = s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "beta", recs[0].Name())
}
