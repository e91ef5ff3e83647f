package search

import (
	"context"
	"fmt"
	"testing"
)

func fill(b *testing.B, idx Index, n int) {
	b.Helper()
	for i := 0; i < n; i++ {
		err := idx.Update(context.Background(), fmt.Sprintf("project-%d", i), map[string][]string{
			"description": {"search engine with field indexing and query processing"},
			"tags":        {"search", fmt.Sprintf("tag-%d", i%50)},
		})
		if err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkMemoryUpdate(b *testing.B) {
	m := NewMemory()
	fields := map[string][]string{"description": {"benchmark project with several terms for indexing"}}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = m.Update(context.Background(), fmt.Sprintf("project-%d", i%10000), fields)
	}
}

func BenchmarkMemoryQuery(b *testing.B) {
	for _, n := range []int{100, 1000, 10000} {
		b.Run(fmt.Sprintf("docs_%d", n), func(b *testing.B) {
			m := NewMemory()
			fill(b, m, n)
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, _ = m.Query(context.Background(), "search indexing")
			}
		})
	}
}

func BenchmarkCachedQueryParallel(b *testing.B) {
	c, err := NewCached(NewMemory(), 128, nil)
	if err != nil {
		b.Fatal(err)
	}
	fill(b, c, 5000)
	queries := []string{"search", "indexing", "query processing", "tag-7"}
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			_, _ = c.Query(context.Background(), queries[i%len(queries)])
			i++
		}
	})
}
