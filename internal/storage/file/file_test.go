package file

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/toolbox/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/toolbox/internal/record"
	"github.com/Adithya-Monish-Kumar-K/toolbox/internal/search"
	"github.com/Adithya-Monish-Kumar-K/toolbox/internal/storage"
	apperrors "github.com/Adithya-Monish-Kumar-K/toolbox/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/toolbox/pkg/logger"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	alpha := record.New("alpha", "first", "http://a")
	alpha.Set("tags", record.Multi("y", "x"))
	alpha.Modified = 100
	beta := record.New("beta", "second", "http://b")
	require.NoError(t, s.Save(ctx, alpha))
	require.NoError(t, s.Save(ctx, beta))

	reopened, err := New(s.Dir())
	require.NoError(t, err)
	recs, err := reopened.Load(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	byName := map[string]record.Record{}
	for _, r := range recs {
		byName[r.Name()] = r
	}
	assert.True(t, alpha.Equal(byName["alpha"], true))
	assert.True(t, beta.Equal(byName["beta"], true))
	assert.Zero(t, byName["beta"].Modified)
}

func TestLoadIsIdempotent(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, record.New("alpha", "first", "http://a")))

	first, err := s.Load(ctx)
	require.NoError(t, err)
	second, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestFileNames(t *testing.T) {
	assert.Regexp(t, `^my-tool-[0-9a-f]{8}\.json$`, FileName("My Tool"))
	assert.NotEqual(t, FileName("My Tool"), FileName("my tool"))
	assert.Regexp(t, `^project-[0-9a-f]{8}\.json$`, FileName(""))
	assert.Regexp(t, `^-etc-passwd-[0-9a-f]{8}\.json$`, FileName("../etc/passwd"))
	assert.NotContains(t, FileName("../etc/passwd"), "/")
}

func TestLoadKeepsExistingFileNames(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	path := filepath.Join(s.Dir(), "handwritten.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"name":"alpha","description":"d","url":"u"}`), 0o644))

	_, err := s.Load(ctx)
	require.NoError(t, err)

	rec := record.New("alpha", "changed", "u")
	require.NoError(t, s.Save(ctx, rec))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "changed")

	entries, err := filepath.Glob(filepath.Join(s.Dir(), "*.json"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	require.NoError(t, s.Delete(ctx, "alpha"))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestLoadIgnoresOtherFiles(t *testing.T) {
	s := newStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "README.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(s.Dir(), "nested.json"), 0o755))

	recs, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestLoadMalformedNamesFile(t *testing.T) {
	s := newStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "broken.json"), []byte(`{"name": 42}`), 0o644))

	_, err := s.Load(context.Background())
	require.ErrorIs(t, err, apperrors.ErrMalformedRecord)
	assert.Contains(t, err.Error(), "broken.json")
}

func TestDeleteUnknownIsNotAnError(t *testing.T) {
	s := newStore(t)
	assert.NoError(t, s.Delete(context.Background(), "ghost"))
}

func TestNewRejectsRegularFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	_, err := New(path)
	require.ErrorIs(t, err, apperrors.ErrBackendUnavailable)
}

func TestNewCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	_, err := New(dir)
	require.NoError(t, err)
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestFactoryDefaults(t *testing.T) {
	f := Factory()
	assert.Equal(t, "file", f.Name)
	dir := filepath.Join(t.TempDir(), "data")
	a, err := f.OpenWith(context.Background(), map[string]string{"directory": dir})
	require.NoError(t, err)
	defer a.Close()
	assert.IsType(t, &Store{}, a)

	_, err = f.OpenWith(context.Background(), map[string]string{"dir": dir})
	assert.ErrorIs(t, err, storage.ErrUnknownOption)
}

func TestWatchReportsExternalWrites(t *testing.T) {
	s := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	done := make(chan error, 1)
	go func() { done <- s.Watch(ctx, 10*time.Millisecond, func() { calls.Add(1) }) }()

	// Give the watcher time to register.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "new.json"), []byte(`{}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "notes.txt"), []byte(`x`), 0o644))

	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}

func TestWatchReportsRemovals(t *testing.T) {
	s := newStore(t)
	path := filepath.Join(s.Dir(), "gone.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var calls atomic.Int32
	go func() { _ = s.Watch(ctx, 10*time.Millisecond, func() { calls.Add(1) }) }()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.Remove(path))
	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestWatchDrivenLoadDropsRemovedProjects(t *testing.T) {
	s := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := catalog.New(ctx, s, search.NewMemory(), catalog.WithLogger(logger.Discard()))
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.Update(ctx, record.New("alpha", "fast json parser", "http://a")))
	require.NoError(t, c.Update(ctx, record.New("beta", "schema validator", "http://b")))
	_, err = c.Load(ctx)
	require.NoError(t, err)

	go func() {
		_ = s.Watch(ctx, 10*time.Millisecond, func() { _, _ = c.Load(ctx) })
	}()
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.Remove(filepath.Join(s.Dir(), FileName("alpha"))))

	assert.Eventually(t, func() bool {
		names := c.Projects()
		return len(names) == 1 && names[0] == "beta"
	}, 2*time.Second, 10*time.Millisecond)
	hits, err := c.Get(ctx, catalog.Query{Search: "parser"})
	require.NoError(t, err)
	assert.Empty(t, hits)
}
