// Command toolbox-loadtest drives a running toolboxd with a mix of text,
// filter and fused catalog queries and reports latency per query kind.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

type query struct {
	kind string
	path string
}

type stringList []string

func (l *stringList) String() string     { return strings.Join(*l, ",") }
func (l *stringList) Set(v string) error { *l = append(*l, v); return nil }

// buildQueries crosses every search text and filter into text-only,
// filter-only and fused requests. Filters are field=value pairs.
func buildQueries(texts, filters []string) ([]query, error) {
	var out []query
	for _, t := range texts {
		out = append(out, query{kind: "text", path: "/api/v1/projects?" + url.Values{"q": {t}}.Encode()})
	}
	for _, f := range filters {
		field, value, ok := strings.Cut(f, "=")
		if !ok || field == "" || field == "q" {
			return nil, fmt.Errorf("filter %q must be field=value", f)
		}
		out = append(out, query{kind: "filter", path: "/api/v1/projects?" + url.Values{field: {value}}.Encode()})
		for _, t := range texts {
			out = append(out, query{kind: "fused", path: "/api/v1/projects?" + url.Values{"q": {t}, field: {value}}.Encode()})
		}
	}
	if len(out) == 0 {
		out = append(out, query{kind: "all", path: "/api/v1/projects"})
	}
	return out, nil
}

type stats struct {
	mu        sync.Mutex
	latencies map[string][]time.Duration
	codes     map[int]int
	errors    int
}

func newStats() *stats {
	return &stats{latencies: make(map[string][]time.Duration), codes: make(map[int]int)}
}

func (s *stats) record(kind string, d time.Duration, status int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.errors++
		return
	}
	s.codes[status]++
	if status < 200 || status >= 300 {
		s.errors++
		return
	}
	s.latencies[kind] = append(s.latencies[kind], d)
}

func run(ctx context.Context, baseURL string, workers int, queries []query, s *stats) error {
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        workers * 2,
			MaxIdleConnsPerHost: workers * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for i := w; ctx.Err() == nil; i++ {
				q := queries[i%len(queries)]
				req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+q.path, nil)
				if err != nil {
					return err
				}
				start := time.Now()
				resp, err := client.Do(req)
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					s.record(q.kind, time.Since(start), 0, err)
					continue
				}
				_, _ = io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				s.record(q.kind, time.Since(start), resp.StatusCode, nil)
			}
			return nil
		})
	}
	return g.Wait()
}

func report(w io.Writer, s *stats, elapsed time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := s.errors
	kinds := make([]string, 0, len(s.latencies))
	for k, l := range s.latencies {
		kinds = append(kinds, k)
		total += len(l)
	}
	sort.Strings(kinds)

	fmt.Fprintln(w, "=== Results ===")
	fmt.Fprintf(w, "Requests:     %d\n", total)
	fmt.Fprintf(w, "Errors:       %d\n", s.errors)
	if total > 0 && elapsed > 0 {
		fmt.Fprintf(w, "Requests/sec: %.2f\n", float64(total)/elapsed.Seconds())
	}
	for _, k := range kinds {
		l := s.latencies[k]
		sort.Slice(l, func(i, j int) bool { return l[i] < l[j] })
		fmt.Fprintf(w, "\n%s (%d)\n", k, len(l))
		fmt.Fprintf(w, "  p50 %s  p90 %s  p99 %s  max %s\n",
			percentile(l, 50), percentile(l, 90), percentile(l, 99), l[len(l)-1])
	}
	codes := make([]int, 0, len(s.codes))
	for c := range s.codes {
		codes = append(codes, c)
	}
	sort.Ints(codes)
	fmt.Fprintln(w, "\n=== Status Codes ===")
	for _, c := range codes {
		fmt.Fprintf(w, "  %d: %d\n", c, s.codes[c])
	}
	return total
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of toolboxd")
	workers := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	var texts, filters stringList
	flag.Var(&texts, "q", "search text (repeatable)")
	flag.Var(&filters, "filter", "field=value filter (repeatable)")
	flag.Parse()

	if len(texts) == 0 && len(filters) == 0 {
		texts = stringList{"json parser", "command line", "http client", "testing"}
	}
	queries, err := buildQueries(texts, filters)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *duration)
	defer cancel()

	fmt.Printf("target %s, %d workers, %s, %d query shapes\n\n", *baseURL, *workers, *duration, len(queries))
	s := newStats()
	start := time.Now()
	if err := run(ctx, *baseURL, *workers, queries, s); err != nil {
		fmt.Fprintln(os.Stderr, "load test failed:", err)
		os.Exit(1)
	}
	if report(os.Stdout, s, time.Since(start)) == 0 {
		fmt.Fprintln(os.Stderr, "no requests completed; is toolboxd running?")
		os.Exit(1)
	}
}
