// Package metrics exposes Prometheus collectors for the sync server.
//
// A nil *Metrics is valid and records nothing, so components can be built
// without a registry in tests.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rollcall"

// Drop reasons recorded by [Metrics.DeliveryDropped].
const (
	DropClosed = "closed"
	DropFull   = "full"
)

// Metrics groups the collectors used across the server.
type Metrics struct {
	registry   *prometheus.Registry
	observers  prometheus.Gauge
	classrooms prometheus.Gauge
	events     *prometheus.CounterVec
	dropped    *prometheus.CounterVec
	mutations  *prometheus.CounterVec
	inbound    *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
//
// If reg is nil a fresh registry is created. Go runtime and process
// collectors are added so /metrics is useful on its own.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		registry: reg,
		observers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "observers",
			Help:      "Number of connected real-time observers.",
		}),
		classrooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "classrooms",
			Help:      "Number of classrooms in the store.",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Events broadcast to observers, by event type.",
		}, []string{"type"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_dropped_total",
			Help:      "Per-observer deliveries skipped, by reason.",
		}, []string{"reason"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Gateway operations, by operation and outcome.",
		}, []string{"op", "outcome"}),
		inbound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_messages_total",
			Help:      "Messages received from observers, by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.observers,
		m.classrooms,
		m.events,
		m.dropped,
		m.mutations,
		m.inbound,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler returns an http.Handler serving the registry in the Prometheus
// exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// SetObservers records the current observer count.
func (m *Metrics) SetObservers(n int) {
	if m == nil {
		return
	}
	m.observers.Set(float64(n))
}

// SetClassrooms records the current store size.
func (m *Metrics) SetClassrooms(n int) {
	if m == nil {
		return
	}
	m.classrooms.Set(float64(n))
}

// EventPublished counts one broadcast of the given event type.
func (m *Metrics) EventPublished(eventType string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(eventType).Inc()
}

// DeliveryDropped counts one skipped delivery.
func (m *Metrics) DeliveryDropped(reason string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(reason).Inc()
}

// Mutation counts one gateway operation. outcome is "ok" or an error kind.
func (m *Metrics) Mutation(op, outcome string) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(op, outcome).Inc()
}

// Inbound counts one message read from an observer.
func (m *Metrics) Inbound(outcome string) {
	if m == nil {
		return
	}
	m.inbound.WithLabelValues(outcome).Inc()
}
