package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpErrors   *prometheus.CounterVec

	Submissions     *prometheus.CounterVec
	LockWaitSeconds prometheus.Histogram
	CreationSeconds prometheus.Histogram
}

// NewMetrics registers and returns the collectors on a private registry, so
// repeated construction in tests cannot collide.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "accounts_http_requests_total",
			Help: "HTTP requests by route, method and status",
		}, []string{"path", "method", "status"}),
		httpErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "accounts_http_errors_total",
			Help: "HTTP errors by route, method and error code",
		}, []string{"path", "method", "code"}),
		Submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "accounts_submissions_total",
			Help: "Account submissions by terminal outcome",
		}, []string{"outcome"}),
		LockWaitSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "accounts_creation_lock_wait_seconds",
			Help:    "Time spent waiting for the creation lock",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 120, 300},
		}),
		CreationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "accounts_creation_duration_seconds",
			Help:    "End-to-end duration of account creation tasks",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		}),
	}
}

// RecordRequest increments the request counter.
func (m *Metrics) RecordRequest(path, method string, status int, _ time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.httpErrors.WithLabelValues(path, method, code).Inc()
}

// RecordSubmission counts a terminal submission outcome.
func (m *Metrics) RecordSubmission(outcome string) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(outcome).Inc()
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
