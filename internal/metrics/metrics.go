// Package metrics exposes the Prometheus collectors of the facewatch server.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "facewatch"

// Metrics groups all collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Detections       *prometheus.CounterVec   // match results by status
	Alerts           *prometheus.CounterVec   // stored alerts by type and status
	Notifications    *prometheus.CounterVec   // deliveries by provider and result
	NotifyDuration   *prometheus.HistogramVec // delivery latency by provider
	HTTPRequests     *prometheus.CounterVec   // requests by method, route and status code
	HTTPDuration     *prometheus.HistogramVec // request latency by method and route
	KnownFaces       prometheus.Gauge
	RateLimitBlocked *prometheus.CounterVec // rejected requests by limiter

	registry *prometheus.Registry
}

// New creates the collectors and registers them, together with the Go and
// process collectors, on a fresh registry.
func New() (*Metrics, error) {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.Detections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "detections_total",
		Help:      "Descriptor match results by detection status",
	}, []string{"status"})

	m.Alerts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alerts_total",
		Help:      "Detection alerts recorded by alert type and detection status",
	}, []string{"alert_type", "status"})

	m.Notifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "Notification deliveries by provider and result (success, error, skipped)",
	}, []string{"provider", "result"})

	m.NotifyDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "notification_duration_seconds",
		Help:      "Time taken to deliver a notification by provider",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	}, []string{"provider"})

	m.HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route pattern and status code",
	}, []string{"method", "route", "code"})

	m.HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method and route pattern",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	m.KnownFaces = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "known_faces",
		Help:      "Number of faces in the known-face library",
	})

	m.RateLimitBlocked = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limit_rejections_total",
		Help:      "Requests rejected by a rate limiter",
	}, []string{"limiter"})

	cs := []prometheus.Collector{
		m.Detections, m.Alerts, m.Notifications, m.NotifyDuration,
		m.HTTPRequests, m.HTTPDuration, m.KnownFaces, m.RateLimitBlocked,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	for _, c := range cs {
		if err := m.registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}
	return m, nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) RecordDetection(status string) {
	if m == nil {
		return
	}
	m.Detections.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordAlert(alertType, status string) {
	if m == nil {
		return
	}
	m.Alerts.WithLabelValues(alertType, status).Inc()
}

// RecordNotification counts one delivery attempt. result is "success", "error" or "skipped".
func (m *Metrics) RecordNotification(provider, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(provider, result).Inc()
	if result != "skipped" {
		m.NotifyDuration.WithLabelValues(provider).Observe(d.Seconds())
	}
}

func (m *Metrics) RecordHTTPRequest(method, route string, code int, d time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) SetKnownFaces(n int) {
	if m == nil {
		return
	}
	m.KnownFaces.Set(float64(n))
}

func (m *Metrics) RecordRateLimited(limiter string) {
	if m == nil {
		return
	}
	m.RateLimitBlocked.WithLabelValues(limiter).Inc()
}
