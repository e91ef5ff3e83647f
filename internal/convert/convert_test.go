package convert

import (
	"bytes"
	"context"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/toolbox/internal/record"
	"github.com/Adithya-Monish-Kumar-K/toolbox/internal/storage"
	"github.com/Adithya-Monish-Kumar-K/toolbox/internal/storage/file"
	"github.com/Adithya-Monish-Kumar-K/toolbox/internal/storage/nop"
	"github.com/Adithya-Monish-Kumar-K/toolbox/internal/storage/sqlite"
	apperrors "github.com/Adithya-Monish-Kumar-K/toolbox/pkg/errors"
)

func testFactories() map[string]storage.Factory {
	m := make(map[string]storage.Factory)
	for _, f := range []storage.Factory{nop.Factory(), file.Factory(), sqlite.Factory()} {
		m[f.Name] = f
	}
	return m
}

func TestParseArgs(t *testing.T) {
	plan, err := ParseArgs(testFactories(), []string{"file", "-directory=/tmp/a", "sqlite", "path=/tmp/b.db"})
	require.NoError(t, err)
	assert.Equal(t, Plan{
		From: Target{Backend: "file", Options: map[string]string{"directory": "/tmp/a"}},
		To:   Target{Backend: "sqlite", Options: map[string]string{"path": "/tmp/b.db"}},
	}, plan)

	plan, err = ParseArgs(testFactories(), []string{"memory", "file", "--directory=x=y"})
	require.NoError(t, err)
	assert.Empty(t, plan.From.Options)
	assert.Equal(t, "x=y", plan.To.Options["directory"])
}

func TestParseArgsErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no backends", nil},
		{"one backend", []string{"file"}},
		{"three backends", []string{"file", "memory", "sqlite"}},
		{"option first", []string{"directory=x", "file", "memory"}},
		{"flag without value", []string{"file", "-directory", "memory"}},
		{"empty key", []string{"file", "=x", "memory"}},
		{"unknown backend", []string{"file", "couch"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseArgs(testFactories(), tt.args)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUsage)
		})
	}

	_, err := ParseArgs(testFactories(), []string{"file", "couch"})
	assert.ErrorIs(t, err, apperrors.ErrUnknownBackend)
	assert.Contains(t, err.Error(), "file, memory, sqlite")
}

func TestListModels(t *testing.T) {
	var buf bytes.Buffer
	ListModels(&buf, testFactories())
	assert.Equal(t, "file\nmemory\nsqlite\n", buf.String())
}

func TestListArgs(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ListArgs(&buf, testFactories(), "file"))
	assert.Equal(t, "file arguments:\n -directory toolbox-data\n", buf.String())

	buf.Reset()
	require.NoError(t, ListArgs(&buf, testFactories(), "memory"))
	assert.Equal(t, "memory arguments:\n", buf.String())

	err := ListArgs(&buf, testFactories(), "couch")
	assert.ErrorIs(t, err, ErrUsage)
}

func TestRunCopiesEveryProject(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	src, err := file.New(filepath.Join(dir, "src"))
	require.NoError(t, err)

	a := record.New("alpha", "first tool", "http://a")
	a.Set("tags", record.Multi("cli", "go"))
	a.Modified = 100
	b := record.New("beta", "second tool", "http://b")
	b.Modified = 200
	require.NoError(t, src.Save(ctx, a))
	require.NoError(t, src.Save(ctx, b))

	dbPath := filepath.Join(dir, "out.db")
	plan, err := ParseArgs(testFactories(), []string{
		"file", "directory=" + filepath.Join(dir, "src"),
		"sqlite", "path=" + dbPath,
	})
	require.NoError(t, err)

	n, err := Run(ctx, testFactories(), plan)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	dst, err := sqlite.New(ctx, dbPath)
	require.NoError(t, err)
	defer dst.Close()
	recs, err := dst.Load(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	sort.Slice(recs, func(i, j int) bool { return recs[i].Name() < recs[j].Name() })
	assert.Equal(t, "alpha", recs[0].Name())
	tags, _ := recs[0].Get("tags")
	assert.Equal(t, []string{"cli", "go"}, tags.Values())
	assert.NotZero(t, recs[0].Modified)
	assert.Equal(t, "beta", recs[1].Name())
}

func TestRunRejectsUnknownOption(t *testing.T) {
	plan := Plan{
		From: Target{Backend: "memory", Options: map[string]string{}},
		To:   Target{Backend: "file", Options: map[string]string{"dir": t.TempDir()}},
	}
	_, err := Run(context.Background(), testFactories(), plan)
	assert.ErrorIs(t, err, ErrUsage)
	assert.ErrorIs(t, err, storage.ErrUnknownOption)
}
