package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the tracker. A nil *Metrics records nothing.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Ingestion metrics
	EventsTrackedTotal *prometheus.CounterVec
	EventsSkippedTotal *prometheus.CounterVec
	EventsFailedTotal  *prometheus.CounterVec

	// Cache metrics
	CacheLookupsTotal *prometheus.CounterVec
	CacheErrorsTotal  *prometheus.CounterVec
	CacheFlushesTotal *prometheus.CounterVec

	// Retention metrics
	CleanupRunsTotal      *prometheus.CounterVec
	CleanupRemovedTotal   prometheus.Counter
	CleanupLastRunSeconds prometheus.Gauge
}

func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "perftracker_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "perftracker_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		EventsTrackedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "perftracker_events_tracked_total",
				Help: "Total number of stored storefront events",
			},
			[]string{"event_type"},
		),
		EventsSkippedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "perftracker_events_skipped_total",
				Help: "Total number of events dropped by the tracking policy",
			},
			[]string{"reason"},
		),
		EventsFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "perftracker_events_failed_total",
				Help: "Total number of events that could not be stored",
			},
			[]string{"event_type"},
		),

		CacheLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "perftracker_cache_lookups_total",
				Help: "Total number of metric cache lookups",
			},
			[]string{"kind", "result"},
		),
		CacheErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "perftracker_cache_errors_total",
				Help: "Total number of metric cache backend errors",
			},
			[]string{"operation"},
		),
		CacheFlushesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "perftracker_cache_flushes_total",
				Help: "Total number of metric cache flushes",
			},
			[]string{"reason"},
		),

		CleanupRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "perftracker_cleanup_runs_total",
				Help: "Total number of retention cleanup runs",
			},
			[]string{"status"},
		),
		CleanupRemovedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "perftracker_cleanup_removed_events_total",
				Help: "Total number of events removed by retention cleanup",
			},
		),
		CleanupLastRunSeconds: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "perftracker_cleanup_last_run_timestamp_seconds",
				Help: "Unix time of the last successful retention cleanup",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.EventsTrackedTotal,
		m.EventsSkippedTotal,
		m.EventsFailedTotal,
		m.CacheLookupsTotal,
		m.CacheErrorsTotal,
		m.CacheFlushesTotal,
		m.CleanupRunsTotal,
		m.CleanupRemovedTotal,
		m.CleanupLastRunSeconds,
	)

	return m
}

func (m *Metrics) CacheLookup(kind string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookupsTotal.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) CacheError(operation string) {
	if m == nil {
		return
	}
	m.CacheErrorsTotal.WithLabelValues(operation).Inc()
}

func (m *Metrics) CacheFlushed(reason string) {
	if m == nil {
		return
	}
	m.CacheFlushesTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) EventTracked(eventType string) {
	if m == nil {
		return
	}
	m.EventsTrackedTotal.WithLabelValues(eventType).Inc()
}

func (m *Metrics) EventSkipped(reason string) {
	if m == nil {
		return
	}
	m.EventsSkippedTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) EventFailed(eventType string) {
	if m == nil {
		return
	}
	m.EventsFailedTotal.WithLabelValues(eventType).Inc()
}

// CleanupFinished records one retention run. removed is ignored when err is set.
func (m *Metrics) CleanupFinished(removed int64, unixTime float64, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.CleanupRunsTotal.WithLabelValues("error").Inc()
		return
	}
	m.CleanupRunsTotal.WithLabelValues("success").Inc()
	m.CleanupRemovedTotal.Add(float64(removed))
	m.CleanupLastRunSeconds.Set(unixTime)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
