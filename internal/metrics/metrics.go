// Package metrics holds the Prometheus instruments exported by the local
// events stub.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for eventctl stub-server
type Metrics struct {
	// HTTP metrics
	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Auth metrics
	CodesIssued    prometheus.Counter
	Registrations  *prometheus.CounterVec
	Authentication *prometheus.CounterVec

	// Event metrics
	EventMutations *prometheus.CounterVec
	EventsStored   prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		Requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventctl_stub_requests_total",
				Help: "Total number of HTTP requests handled",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "eventctl_stub_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"method", "route"},
		),

		CodesIssued: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "eventctl_stub_verification_codes_total",
				Help: "Total number of verification codes issued",
			},
		),
		Registrations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventctl_stub_registrations_total",
				Help: "Total number of registration attempts",
			},
			[]string{"success"},
		),
		Authentication: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventctl_stub_authentications_total",
				Help: "Total number of credential checks",
			},
			[]string{"success"},
		),

		EventMutations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventctl_stub_event_mutations_total",
				Help: "Total number of event creations and deletions",
			},
			[]string{"operation"},
		),
		EventsStored: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "eventctl_stub_events",
				Help: "Number of events currently stored",
			},
		),
	}
}

// ObserveRequest records one handled request. A nil receiver is a no-op.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.Requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// CodeIssued counts a verification code.
func (m *Metrics) CodeIssued() {
	if m == nil {
		return
	}
	m.CodesIssued.Inc()
}

// Registered counts a registration attempt.
func (m *Metrics) Registered(success bool) {
	if m == nil {
		return
	}
	m.Registrations.WithLabelValues(strconv.FormatBool(success)).Inc()
}

// Authenticated counts a credential check.
func (m *Metrics) Authenticated(success bool) {
	if m == nil {
		return
	}
	m.Authentication.WithLabelValues(strconv.FormatBool(success)).Inc()
}

// EventMutated counts a create or delete and updates the stored gauge.
func (m *Metrics) EventMutated(operation string, stored int) {
	if m == nil {
		return
	}
	m.EventMutations.WithLabelValues(operation).Inc()
	m.EventsStored.Set(float64(stored))
}
