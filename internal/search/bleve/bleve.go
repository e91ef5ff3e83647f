// Package bleve realizes the catalog's free-text index on top of bleve v2.
// Every project field is indexed as English text into the composite field,
// and queries are match queries across all of them.
package bleve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/Adithya-Monish-Kumar-K/toolbox/internal/search"
)

type Index struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
	logger *slog.Logger
}

// New opens the index at path, creating it if needed. An empty path builds
// a memory-only index.
func New(path string) (*Index, error) {
	indexMapping := newMapping()
	logger := slog.Default().With("component", "bleve-index")

	var (
		idx bleve.Index
		err error
	)
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		if mkErr := os.MkdirAll(filepath.Dir(path), 0o755); mkErr != nil {
			return nil, fmt.Errorf("creating index directory: %w", mkErr)
		}
		idx, err = bleve.Open(path)
		if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("opening bleve index %q: %w", path, err)
	}
	logger.Info("search index opened", "path", path)
	return &Index{index: idx, path: path, logger: logger}, nil
}

func newMapping() *mapping.IndexMappingImpl {
	m := bleve.NewIndexMapping()
	m.DefaultAnalyzer = en.AnalyzerName
	m.StoreDynamic = false
	m.DocValuesDynamic = false
	return m
}

func (ix *Index) Update(_ context.Context, name string, fields map[string][]string) error {
	doc := make(map[string]any, len(fields))
	for k, vals := range fields {
		doc[k] = strings.Join(vals, " ")
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return search.ErrClosed
	}
	if err := ix.index.Index(name, doc); err != nil {
		return fmt.Errorf("indexing project %s: %w", name, err)
	}
	return nil
}

func (ix *Index) Delete(_ context.Context, name string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return search.ErrClosed
	}
	if err := ix.index.Delete(name); err != nil {
		return fmt.Errorf("removing project %s from index: %w", name, err)
	}
	return nil
}

// Query returns every match, best score first, ties broken by name.
func (ix *Index) Query(ctx context.Context, text string) ([]string, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.closed {
		return nil, search.ErrClosed
	}
	if strings.TrimSpace(text) == "" {
		return []string{}, nil
	}

	count, err := ix.index.DocCount()
	if err != nil {
		return nil, fmt.Errorf("counting indexed projects: %w", err)
	}
	if count == 0 {
		return []string{}, nil
	}

	req := bleve.NewSearchRequest(bleve.NewMatchQuery(text))
	req.Size = int(count)
	req.SortBy([]string{"-_score", "_id"})

	result, err := ix.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("searching %q: %w", text, err)
	}
	names := make([]string, 0, len(result.Hits))
	for _, hit := range result.Hits {
		names = append(names, hit.ID)
	}
	return names, nil
}

func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return nil
	}
	ix.closed = true
	return ix.index.Close()
}

var _ search.Index = (*Index)(nil)
