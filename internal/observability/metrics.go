package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the grid
// service.
type Metrics struct {
	GridRequests      *prometheus.CounterVec // labels: endpoint={grid,historical}, outcome={ok,error}
	ThrottledRequests prometheus.Counter

	// Cache metrics.
	CacheLookups   *prometheus.CounterVec // labels: result={hit,miss,stale,error}
	CacheEvictions prometheus.Counter

	// Upstream (ERDDAP) metrics.
	UpstreamRequests  *prometheus.CounterVec // labels: outcome={success,no_data,timeout,error}
	UpstreamDuration  prometheus.Histogram
	FetchRetries      prometheus.Counter
	CoalescedRequests prometheus.Counter
	QueueDepth        prometheus.Gauge
	BreakerOpen       prometheus.Gauge

	// Rendering metrics.
	RasterDuration prometheus.Histogram
	TilesRendered  *prometheus.CounterVec // labels: kind={value,styled}

	// Fetch-audit publishing metrics.
	AuditPublished prometheus.Counter
	AuditErrors    prometheus.Counter
}

// NewMetrics creates and registers all service metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		GridRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "oceangrid",
			Name:      "grid_requests_total",
			Help:      "Grid API requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		ThrottledRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "oceangrid",
			Name:      "throttled_requests_total",
			Help:      "Requests rejected by the per-client rate limit.",
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "oceangrid",
			Name:      "cache_lookups_total",
			Help:      "Grid cache lookups by result.",
		}, []string{"result"}),
		CacheEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "oceangrid",
			Name:      "cache_evictions_total",
			Help:      "Cache entries removed by age, date rollover, or count limit.",
		}),
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "oceangrid",
			Name:      "upstream_requests_total",
			Help:      "ERDDAP requests by outcome.",
		}, []string{"outcome"}),
		UpstreamDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "oceangrid",
			Name:      "upstream_duration_seconds",
			Help:      "ERDDAP request duration in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		FetchRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "oceangrid",
			Name:      "fetch_retries_total",
			Help:      "Coordinator-level retries of transient upstream failures.",
		}),
		CoalescedRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "oceangrid",
			Name:      "coalesced_requests_total",
			Help:      "Logical requests attached to an already in-flight fetch.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "oceangrid",
			Name:      "fetch_queue_depth",
			Help:      "Requests waiting for an upstream concurrency slot.",
		}),
		BreakerOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "oceangrid",
			Name:      "breaker_open",
			Help:      "1 while the upstream circuit breaker is open.",
		}),
		RasterDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "oceangrid",
			Name:      "raster_duration_seconds",
			Help:      "Time spent rasterizing a grid into pixels.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),
		TilesRendered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "oceangrid",
			Name:      "tiles_rendered_total",
			Help:      "Map tiles rendered by kind.",
		}, []string{"kind"}),
		AuditPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "oceangrid",
			Name:      "audit_published_total",
			Help:      "Fetch-audit records published to Kafka.",
		}),
		AuditErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "oceangrid",
			Name:      "audit_errors_total",
			Help:      "Fetch-audit publish failures.",
		}),
	}

	prometheus.MustRegister(
		m.GridRequests,
		m.ThrottledRequests,
		m.CacheLookups,
		m.CacheEvictions,
		m.UpstreamRequests,
		m.UpstreamDuration,
		m.FetchRetries,
		m.CoalescedRequests,
		m.QueueDepth,
		m.BreakerOpen,
		m.RasterDuration,
		m.TilesRendered,
		m.AuditPublished,
		m.AuditErrors,
	)

	return m
}

// NewMetricsForTesting creates Metrics with unregistered collectors to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		GridRequests:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "oceangrid", Name: "grid_requests_total"}, []string{"endpoint", "outcome"}),
		ThrottledRequests: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "oceangrid", Name: "throttled_requests_total"}),
		CacheLookups:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "oceangrid", Name: "cache_lookups_total"}, []string{"result"}),
		CacheEvictions:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "oceangrid", Name: "cache_evictions_total"}),
		UpstreamRequests:  prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "oceangrid", Name: "upstream_requests_total"}, []string{"outcome"}),
		UpstreamDuration:  prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "oceangrid", Name: "upstream_duration_seconds"}),
		FetchRetries:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: "oceangrid", Name: "fetch_retries_total"}),
		CoalescedRequests: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "oceangrid", Name: "coalesced_requests_total"}),
		QueueDepth:        prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "oceangrid", Name: "fetch_queue_depth"}),
		BreakerOpen:       prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "oceangrid", Name: "breaker_open"}),
		RasterDuration:    prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "oceangrid", Name: "raster_duration_seconds"}),
		TilesRendered:     prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "oceangrid", Name: "tiles_rendered_total"}, []string{"kind"}),
		AuditPublished:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "oceangrid", Name: "audit_published_total"}),
		AuditErrors:       prometheus.NewCounter(prometheus.CounterOpts{Namespace: "oceangrid", Name: "audit_errors_total"}),
	}
}
