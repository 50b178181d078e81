package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// BookingMetrics exposes counters for the scheduling engine. A nil
// *BookingMetrics is valid and records nothing.
type BookingMetrics struct {
	created      *prometheus.CounterVec
	transitions  *prometheus.CounterVec
	availability *prometheus.CounterVec
	holdsPurged  prometheus.Counter
	reconciled   *prometheus.CounterVec
	reloads      *prometheus.CounterVec
	outbox       *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		created: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salon",
			Subsystem: "appointments",
			Name:      "create_total",
			Help:      "Appointment create attempts by outcome",
		}, []string{"outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salon",
			Subsystem: "appointments",
			Name:      "transitions_total",
			Help:      "Committed appointment status transitions",
		}, []string{"to"}),
		availability: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salon",
			Subsystem: "availability",
			Name:      "checks_total",
			Help:      "Availability checks by result",
		}, []string{"result"}),
		holdsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "salon",
			Subsystem: "prebookings",
			Name:      "purged_total",
			Help:      "Expired pre-booking holds removed",
		}),
		reconciled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salon",
			Subsystem: "reconcile",
			Name:      "appointments_total",
			Help:      "Overdue appointments processed by reconciliation",
		}, []string{"action", "result"}),
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salon",
			Subsystem: "appointments",
			Name:      "reloads_total",
			Help:      "Reloads of the in-memory appointment book",
		}, []string{"result"}),
		outbox: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salon",
			Subsystem: "outbox",
			Name:      "events_total",
			Help:      "Outbox events shipped to Kafka by result",
		}, []string{"result"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.created, m.transitions, m.availability, m.holdsPurged, m.reconciled, m.reloads, m.outbox)
	return m
}

// Handler serves the registry in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (m *BookingMetrics) ObserveCreate(outcome string) {
	if m == nil {
		return
	}
	m.created.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveTransition(to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(to).Inc()
}

func (m *BookingMetrics) ObserveAvailability(available bool) {
	if m == nil {
		return
	}
	result := "unavailable"
	if available {
		result = "available"
	}
	m.availability.WithLabelValues(result).Inc()
}

func (m *BookingMetrics) ObservePurged(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.holdsPurged.Add(float64(n))
}

func (m *BookingMetrics) ObserveReconcile(action, result string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.reconciled.WithLabelValues(action, result).Add(float64(n))
}

func (m *BookingMetrics) ObserveReload(ok bool) {
	if m == nil {
		return
	}
	result := "error"
	if ok {
		result = "ok"
	}
	m.reloads.WithLabelValues(result).Inc()
}

// ObserveOutbox counts a shipped batch, or one failed batch of n events.
func (m *BookingMetrics) ObserveOutbox(n int, err error) {
	if m == nil || n <= 0 {
		return
	}
	result := "published"
	if err != nil {
		result = "failed"
	}
	m.outbox.WithLabelValues(result).Add(float64(n))
}
