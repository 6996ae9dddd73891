package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes application metrics that are safe to scrape via Prometheus.
type Metrics struct {
	registry            *prometheus.Registry
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	refreshRunsTotal    *prometheus.CounterVec
	refreshDuration     prometheus.Histogram
	refreshSuperseded   prometheus.Counter
	integrityIssues     *prometheus.CounterVec
	floorRooms          *prometheus.GaugeVec
}

// New creates a fresh Metrics registry with HTTP and refresh metrics registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roomload",
		Name:      "http_requests_total",
		Help:      "Count of HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "roomload",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	refreshRunsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roomload",
		Name:      "refresh_runs_total",
		Help:      "Total number of occupancy refreshes by result",
	}, []string{"result"})

	refreshDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "roomload",
		Name:      "refresh_duration_seconds",
		Help:      "Duration of occupancy refreshes from fetch to publish",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	refreshSuperseded := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "roomload",
		Name:      "refresh_superseded_total",
		Help:      "Refresh results discarded because a newer refresh was already published",
	})

	integrityIssues := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roomload",
		Name:      "data_integrity_issues_total",
		Help:      "Topology records that were ignored or corrected during aggregation",
	}, []string{"kind"})

	floorRooms := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "roomload",
		Name:      "floor_rooms",
		Help:      "Active rooms per floor and load tier in the latest published result",
	}, []string{"floor", "tier"})

	registry.MustRegister(
		httpRequests,
		httpRequestDuration,
		refreshRunsTotal,
		refreshDuration,
		refreshSuperseded,
		integrityIssues,
		floorRooms,
	)

	return &Metrics{
		registry:            registry,
		httpRequests:        httpRequests,
		httpRequestDuration: httpRequestDuration,
		refreshRunsTotal:    refreshRunsTotal,
		refreshDuration:     refreshDuration,
		refreshSuperseded:   refreshSuperseded,
		integrityIssues:     integrityIssues,
		floorRooms:          floorRooms,
	}
}

// ObserveHTTPRequest records a single HTTP request/response cycle.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": strconv.Itoa(status),
	}
	m.httpRequests.With(labels).Inc()
	m.httpRequestDuration.With(labels).Observe(duration.Seconds())
}

// IncRefresh counts a refresh by result ("ok" or "error").
func (m *Metrics) IncRefresh(result string) {
	if m == nil {
		return
	}
	m.refreshRunsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveRefreshDuration(duration time.Duration) {
	if m == nil {
		return
	}
	m.refreshDuration.Observe(duration.Seconds())
}

func (m *Metrics) IncRefreshSuperseded() {
	if m == nil {
		return
	}
	m.refreshSuperseded.Inc()
}

// AddIntegrityIssues counts ignored or corrected records of one kind.
func (m *Metrics) AddIntegrityIssues(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.integrityIssues.WithLabelValues(kind).Add(float64(n))
}

// SetFloorRooms replaces the per-tier room gauge for a floor.
func (m *Metrics) SetFloorRooms(floor, tier string, n int) {
	if m == nil {
		return
	}
	m.floorRooms.WithLabelValues(floor, tier).Set(float64(n))
}

// Handler exposes the Prometheus registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics unavailable"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
