package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersOnPrivateRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.CatalogRecords.Set(3)
	m.CatalogUpdatesTotal.WithLabelValues("update", "applied").Inc()
	m.StorageOp("file", "save", nil)
	m.StorageOp("file", "save", io.EOF)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.CatalogRecords))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StorageOpsTotal.WithLabelValues("file", "save", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StorageOpsTotal.WithLabelValues("file", "save", "error")))

	// a second set on another registry must not panic on duplicate registration
	assert.NotPanics(t, func() { New(prometheus.NewRegistry()) })
}

func TestHandlerServesRegistry(t *testing.T) {
	m := NewNop()
	m.CatalogRecords.Set(7)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "catalog_records 7")
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() { m.StorageOp("file", "load", nil) })
}
