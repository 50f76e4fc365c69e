package telemetry

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheLookupCounters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.CacheLookup("stats", true)
	m.CacheLookup("stats", false)
	m.CacheLookup("stats", false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookupsTotal.WithLabelValues("stats", "hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheLookupsTotal.WithLabelValues("stats", "miss")))
}

func TestCleanupFinished(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.CleanupFinished(3, 1700000000, nil)
	m.CleanupFinished(99, 1700000100, errors.New("boom"))

	assert.Equal(t, 3.0, testutil.ToFloat64(m.CleanupRemovedTotal))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(m.CleanupLastRunSeconds))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CleanupRunsTotal.WithLabelValues("error")))

	expected := `
		# HELP perftracker_cleanup_runs_total Total number of retention cleanup runs
		# TYPE perftracker_cleanup_runs_total counter
		perftracker_cleanup_runs_total{status="error"} 1
		perftracker_cleanup_runs_total{status="success"} 1
	`
	require.NoError(t, testutil.CollectAndCompare(m.CleanupRunsTotal, strings.NewReader(expected)))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.CacheLookup("stats", true)
		m.EventTracked("product_view")
		m.EventSkipped("disabled")
		m.CleanupFinished(1, 0, nil)
	})
}

func TestHandlerExposesRegistry(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	m.EventTracked("product_view")

	rr := httptest.NewRecorder()
	Handler(registry).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `perftracker_events_tracked_total{event_type="product_view"} 1`)
}
