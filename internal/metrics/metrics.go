package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry
	service  string

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	reportsTotal   *prometheus.CounterVec
	votesTotal     *prometheus.CounterVec
	authEvents     *prometheus.CounterVec
	activeSessions prometheus.Gauge
	uploadBytes    prometheus.Histogram
}

func New(service string) *Metrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "citifix",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "citifix",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "citifix",
			Subsystem:   "http",
			Name:        "in_flight_requests",
			Help:        "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{"service": service},
		},
	)
	reportsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "citifix",
			Subsystem: "reports",
			Name:      "submitted_total",
			Help:      "Report submissions by outcome.",
		},
		[]string{"service", "result"},
	)
	votesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "citifix",
			Subsystem: "reports",
			Name:      "votes_total",
			Help:      "Votes by outcome.",
		},
		[]string{"service", "result"},
	)
	authEvents := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "citifix",
			Subsystem: "auth",
			Name:      "events_total",
			Help:      "Session change events seen by the session manager.",
		},
		[]string{"service", "event"},
	)
	activeSessions := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "citifix",
			Subsystem:   "auth",
			Name:        "active_sessions",
			Help:        "Sessions with a live workspace.",
			ConstLabels: prometheus.Labels{"service": service},
		},
	)
	uploadBytes := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   "citifix",
			Subsystem:   "storage",
			Name:        "upload_bytes",
			Help:        "Size of uploaded images.",
			Buckets:     prometheus.ExponentialBuckets(16*1024, 4, 7),
			ConstLabels: prometheus.Labels{"service": service},
		},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		reportsTotal,
		votesTotal,
		authEvents,
		activeSessions,
		uploadBytes,
	)

	return &Metrics{
		registry:        registry,
		service:         service,
		requestTotal:    requestTotal,
		requestDuration: requestDuration,
		requestInFlight: requestInFlight,
		reportsTotal:    reportsTotal,
		votesTotal:      votesTotal,
		authEvents:      authEvents,
		activeSessions:  activeSessions,
		uploadBytes:     uploadBytes,
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency labelled by route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.requestTotal.WithLabelValues(m.service, c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(m.service, c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) RecordReport(result string) {
	if m == nil {
		return
	}
	m.reportsTotal.WithLabelValues(m.service, result).Inc()
}

func (m *Metrics) RecordVote(result string) {
	if m == nil {
		return
	}
	m.votesTotal.WithLabelValues(m.service, result).Inc()
}

func (m *Metrics) RecordAuthEvent(event string) {
	if m == nil {
		return
	}
	m.authEvents.WithLabelValues(m.service, event).Inc()
}

func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}

func (m *Metrics) ObserveUpload(size int64) {
	if m == nil {
		return
	}
	m.uploadBytes.Observe(float64(size))
}
