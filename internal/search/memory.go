package search

import (
	"context"
	"sort"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/toolbox/internal/search/ranker"
	"github.com/Adithya-Monish-Kumar-K/toolbox/internal/search/tokenizer"
)

type memoryDoc struct {
	length int
	terms  []string
}

// Memory is an in-process inverted index (term → name → posting) ranked
// with BM25. Multi-term queries match any term and sum the scores.
type Memory struct {
	mu       sync.RWMutex
	index    map[string]map[string]*ranker.Posting
	docs     map[string]memoryDoc
	totalLen int
	closed   bool
}

func NewMemory() *Memory {
	return &Memory{
		index: make(map[string]map[string]*ranker.Posting),
		docs:  make(map[string]memoryDoc),
	}
}

func (m *Memory) Update(_ context.Context, name string, fields map[string][]string) error {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var texts []string
	for _, k := range keys {
		texts = append(texts, fields[k]...)
	}
	freqs, length := tokenizer.Frequencies(texts...)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.removeLocked(name)

	terms := make([]string, 0, len(freqs))
	for term, freq := range freqs {
		postings, ok := m.index[term]
		if !ok {
			postings = make(map[string]*ranker.Posting)
			m.index[term] = postings
		}
		postings[name] = &ranker.Posting{Name: name, Frequency: freq}
		terms = append(terms, term)
	}
	m.docs[name] = memoryDoc{length: length, terms: terms}
	m.totalLen += length
	return nil
}

func (m *Memory) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.removeLocked(name)
	return nil
}

func (m *Memory) removeLocked(name string) {
	doc, ok := m.docs[name]
	if !ok {
		return
	}
	for _, term := range doc.terms {
		postings := m.index[term]
		delete(postings, name)
		if len(postings) == 0 {
			delete(m.index, term)
		}
	}
	m.totalLen -= doc.length
	delete(m.docs, name)
}

func (m *Memory) Query(_ context.Context, text string) ([]string, error) {
	terms := tokenizer.Terms(text)

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	if len(terms) == 0 || len(m.docs) == 0 {
		return []string{}, nil
	}

	postingsPerTerm := make(map[string][]ranker.Posting, len(terms))
	for _, term := range terms {
		docs, ok := m.index[term]
		if !ok {
			continue
		}
		list := make([]ranker.Posting, 0, len(docs))
		for _, p := range docs {
			list = append(list, *p)
		}
		postingsPerTerm[term] = list
	}

	params := ranker.Params{
		TotalDocs:    len(m.docs),
		AvgDocLength: float64(m.totalLen) / float64(len(m.docs)),
	}
	scored := ranker.Rank(postingsPerTerm, params, func(name string) int {
		return m.docs[name].length
	}, 0)

	names := make([]string, len(scored))
	for i, s := range scored {
		names[i] = s.Name
	}
	return names, nil
}

// Len returns the number of indexed projects.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.index = nil
	m.docs = nil
	return nil
}

var _ Index = (*Memory)(nil)
