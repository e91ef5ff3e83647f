// Package search defines the free-text index the catalog ranks projects
// with, plus the in-process BM25 realization and a caching decorator.
package search

import (
	"context"
	"errors"
)

// ErrClosed is returned by operations on a closed index.
var ErrClosed = errors.New("search index is closed")

// Index is a free-text relevance index over project names.
//
// Update replaces every posting previously held for name. Query returns
// matching names by descending relevance, ties broken by name ascending;
// a query with no usable terms matches nothing.
type Index interface {
	Update(ctx context.Context, name string, fields map[string][]string) error
	Delete(ctx context.Context, name string) error
	Query(ctx context.Context, text string) ([]string, error)
	Close() error
}
