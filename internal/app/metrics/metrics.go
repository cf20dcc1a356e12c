// Package metrics exposes prometheus telemetry for the engine: per-operation
// counters and latencies plus gauges over the live object counts.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns the engine's prometheus registry and instruments.
type Collector struct {
	registry *prometheus.Registry

	operations *prometheus.CounterVec
	durations  *prometheus.HistogramVec
	objects    *prometheus.GaugeVec
	events     prometheus.Counter
}

// NewCollector builds a collector with its own private registry so tests can
// construct any number of them without double-registration panics.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "token_engine"
	}
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Engine operations by component, operation, and outcome.",
		}, []string{"component", "operation", "status"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Engine operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"component", "operation"}),
		objects: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "objects",
			Help:      "Live object counts by kind (collections, orders, pools, daos).",
		}, []string{"kind"}),
		events: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_emitted_total",
			Help:      "Domain events emitted.",
		}),
	}

	registry.MustRegister(c.operations, c.durations, c.objects, c.events)
	return c
}

// ObserveOperation records one operation's outcome and latency. Safe on a
// nil receiver.
func (c *Collector) ObserveOperation(component, operation string, err error, elapsed time.Duration) {
	if c == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.operations.WithLabelValues(component, operation, status).Inc()
	c.durations.WithLabelValues(component, operation).Observe(elapsed.Seconds())
}

// SetObjectCount updates the live-object gauge for one kind.
func (c *Collector) SetObjectCount(kind string, n float64) {
	if c == nil {
		return
	}
	c.objects.WithLabelValues(kind).Set(n)
}

// EventEmitted counts a domain event.
func (c *Collector) EventEmitted() {
	if c == nil {
		return
	}
	c.events.Inc()
}

// Handler serves the registry in the prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
