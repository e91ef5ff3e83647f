// Package metrics defines the Prometheus collectors used across the toolbox
// catalog and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the catalog service.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	CatalogRecords       prometheus.Gauge
	CatalogUpdatesTotal  *prometheus.CounterVec
	CatalogQueriesTotal  *prometheus.CounterVec
	CatalogQueryLatency  *prometheus.HistogramVec
	CatalogQueryResults  prometheus.Histogram
	CatalogLoadsTotal    *prometheus.CounterVec
	SearchCacheHits      prometheus.Counter
	SearchCacheMisses    prometheus.Counter
	StorageOpsTotal      *prometheus.CounterVec
	CircuitBreakerState  *prometheus.GaugeVec
	ChangeEventsTotal    *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New creates all collectors and registers them with reg. Passing nil
// registers with the process-wide default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		CatalogRecords: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "catalog_records",
				Help: "Number of projects currently held by the catalog.",
			},
		),
		CatalogUpdatesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_updates_total",
				Help: "Catalog mutations by operation (update, load, delete, unload) and result (applied, noop, invalid, error).",
			},
			[]string{"op", "result"},
		),
		CatalogQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_queries_total",
				Help: "Catalog queries by kind (filter, text, fused, all).",
			},
			[]string{"kind"},
		),
		CatalogQueryLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "catalog_query_duration_seconds",
				Help:    "Catalog query latency in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"kind"},
		),
		CatalogQueryResults: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "catalog_query_results",
				Help:    "Number of projects returned per query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 500},
			},
		),
		CatalogLoadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_loads_total",
				Help: "Backend load passes by status.",
			},
			[]string{"status"},
		),
		SearchCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "search_cache_hits_total",
				Help: "Total number of free-text search cache hits.",
			},
		),
		SearchCacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "search_cache_misses_total",
				Help: "Total number of free-text search cache misses.",
			},
		),
		StorageOpsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storage_operations_total",
				Help: "Storage backend operations by backend, operation, and result.",
			},
			[]string{"backend", "op", "result"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
		ChangeEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "change_events_total",
				Help: "Change-feed events by direction (published, received) and status.",
			},
			[]string{"direction", "status"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.CatalogRecords,
		m.CatalogUpdatesTotal,
		m.CatalogQueriesTotal,
		m.CatalogQueryLatency,
		m.CatalogQueryResults,
		m.CatalogLoadsTotal,
		m.SearchCacheHits,
		m.SearchCacheMisses,
		m.StorageOpsTotal,
		m.CircuitBreakerState,
		m.ChangeEventsTotal,
	)
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	} else {
		m.gatherer = prometheus.DefaultGatherer
	}

	return m
}

// NewNop returns collectors registered nowhere, for tests and tools that do
// not expose metrics.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

// StorageOp records the outcome of one backend operation.
func (m *Metrics) StorageOp(backend, op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.StorageOpsTotal.WithLabelValues(backend, op, result).Inc()
}

// Handler returns the Prometheus scrape HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
