// Package metrics exposes Prometheus collectors for HTTP traffic and booking activity.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "itsbooking"

// Label values
const (
	ResultCreated    = "created"
	ResultNoCapacity = "no_capacity"
	ResultDuplicate  = "duplicate"
	ResultCancelled  = "cancelled"

	ActionRegister   = "register"
	ActionUnregister = "unregister"

	ReviewApproved = "approved"
	ReviewRejected = "rejected"

	UploadKindAvatar   = "avatar"
	UploadKindExercise = "exercise"
)

// Metrics holds the collectors of one registry
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	reservations  *prometheus.CounterVec
	registrations *prometheus.CounterVec
	reviews       *prometheus.CounterVec
	uploads       *prometheus.CounterVec
	wsClients     prometheus.Gauge
}

// New creates the collectors on a fresh registry together with the Go and process collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		reservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservations_total",
			Help:      "Reservation attempts by result.",
		}, []string{"result"}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "availability_toggles_total",
			Help:      "Assistant availability toggles by action.",
		}, []string{"action"}),
		reviews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exercise_reviews_total",
			Help:      "Exercise reviews by verdict.",
		}, []string{"verdict"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Stored uploads by kind.",
		}, []string{"kind"}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Connected course event clients.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests, m.httpDuration,
		m.reservations, m.registrations, m.reviews, m.uploads, m.wsClients,
	)
	return m
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Middleware records the count and latency of every request by matched route
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Reservation counts a reservation outcome. Safe on a nil receiver.
func (m *Metrics) Reservation(result string) {
	if m == nil {
		return
	}
	m.reservations.WithLabelValues(result).Inc()
}

// Toggle counts an availability toggle. Safe on a nil receiver.
func (m *Metrics) Toggle(action string) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(action).Inc()
}

// Review counts an exercise review. Safe on a nil receiver.
func (m *Metrics) Review(verdict string) {
	if m == nil {
		return
	}
	m.reviews.WithLabelValues(verdict).Inc()
}

// Upload counts a stored upload. Safe on a nil receiver.
func (m *Metrics) Upload(kind string) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(kind).Inc()
}

// SetWebsocketClients records the number of connected event clients
func (m *Metrics) SetWebsocketClients(n int) {
	if m == nil {
		return
	}
	m.wsClients.Set(float64(n))
}
