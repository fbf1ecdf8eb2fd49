package observ

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the Prometheus collectors shared by the HTTP server and
// the booking core.
type Metrics struct {
	Requests          *prometheus.CounterVec
	Duration          *prometheus.HistogramVec
	InFlight          prometheus.Gauge
	TenantResolutions *prometheus.CounterVec
	Transitions       *prometheus.CounterVec
	SlotsOffered      prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meetlines_http_requests_total",
				Help: "Total count of HTTP requests received.",
			},
			[]string{"method", "route", "status"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "meetlines_http_request_duration_seconds",
				Help:    "Histogram of request durations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "meetlines_http_inflight_requests",
			Help: "Number of requests currently being handled.",
		}),
		TenantResolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meetlines_tenant_resolutions_total",
				Help: "Tenant resolution outcomes by kind.",
			},
			[]string{"outcome"},
		),
		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meetlines_appointment_transitions_total",
				Help: "Appointment status transitions by target status.",
			},
			[]string{"status"},
		),
		SlotsOffered: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "meetlines_availability_slots_offered",
			Help:    "Number of slots returned per availability query.",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
		}),
	}

	reg.MustRegister(m.Requests, m.Duration, m.InFlight, m.TenantResolutions, m.Transitions, m.SlotsOffered)
	return m
}

// TenantOutcome implements the tenancy recorder hook.
func (m *Metrics) TenantOutcome(outcome string) {
	m.TenantResolutions.WithLabelValues(outcome).Inc()
}

// Transition implements the appointment recorder hook.
func (m *Metrics) Transition(status string) {
	m.Transitions.WithLabelValues(status).Inc()
}

// Slots implements the availability recorder hook.
func (m *Metrics) Slots(n int) {
	m.SlotsOffered.Observe(float64(n))
}
