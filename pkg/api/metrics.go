package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rubiojr/resdir/pkg/core"
)

// Metrics holds the Prometheus collectors of the API.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	searches        *prometheus.CounterVec
	searchDuration  prometheus.Histogram
	searchResults   prometheus.Histogram
	liveConnections prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "resdir_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "resdir_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		searches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "resdir_searches_total",
				Help: "Searches by outcome (hit, empty, error)",
			},
			[]string{"outcome"},
		),
		searchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "resdir_search_duration_seconds",
				Help:    "Search execution time in seconds",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
			},
		),
		searchResults: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "resdir_search_total_count",
				Help:    "Total matches reported by searches",
				Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000},
			},
		),
		liveConnections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "resdir_live_connections",
				Help: "Open live search WebSocket connections",
			},
		),
	}

	registry.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.searches,
		m.searchDuration,
		m.searchResults,
		m.liveConnections,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency per route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		// ServeMux fills in the matched pattern on the shared request.
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// ObserveSearch records one search outcome.
func (m *Metrics) ObserveSearch(d time.Duration, page *core.ResultPage, err error) {
	m.searchDuration.Observe(d.Seconds())
	switch {
	case err != nil:
		m.searches.WithLabelValues("error").Inc()
	case page.TotalCount == 0:
		m.searches.WithLabelValues("empty").Inc()
		m.searchResults.Observe(0)
	default:
		m.searches.WithLabelValues("hit").Inc()
		m.searchResults.Observe(float64(page.TotalCount))
	}
}
