// Package metrics exposes Prometheus collectors for workflow executions,
// per-item outcomes, stage timings and the event broadcaster.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Item outcome label values.
const (
	ItemCompleted = "completed"
	ItemFailed    = "failed"
)

// Metrics owns a private registry so tests and embedded engines never clash
// with the global default registry.
type Metrics struct {
	registry *prometheus.Registry

	executionsTotal  *prometheus.CounterVec
	itemsTotal       *prometheus.CounterVec
	stageDuration    *prometheus.HistogramVec
	activeExecutions prometheus.Gauge
	eventObservers   prometheus.Gauge
	eventsDropped    prometheus.Counter
}

// New builds and registers every collector.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		executionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mediaflow_executions_total",
				Help: "Total number of finished workflow executions by final status.",
			},
			[]string{"status"},
		),
		itemsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mediaflow_items_total",
				Help: "Total number of processed items by outcome.",
			},
			[]string{"status"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mediaflow_stage_duration_seconds",
				Help:    "Stage handler duration in seconds.",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
			},
			[]string{"stage"},
		),
		activeExecutions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mediaflow_active_executions",
			Help: "Number of workflow executions currently running in this process.",
		}),
		eventObservers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mediaflow_event_observers",
			Help: "Number of registered event observers.",
		}),
		eventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mediaflow_events_dropped_total",
			Help: "Events that could not be delivered because an observer buffer was full.",
		}),
	}

	m.registry.MustRegister(
		m.executionsTotal,
		m.itemsTotal,
		m.stageDuration,
		m.activeExecutions,
		m.eventObservers,
		m.eventsDropped,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Pre-initialize label combinations so they appear with value 0.
	for _, status := range []string{"completed", "failed", "cancelled"} {
		m.executionsTotal.WithLabelValues(status)
	}
	m.itemsTotal.WithLabelValues(ItemCompleted)
	m.itemsTotal.WithLabelValues(ItemFailed)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ExecutionStarted increments the active gauge.
func (m *Metrics) ExecutionStarted() {
	if m == nil {
		return
	}
	m.activeExecutions.Inc()
}

// ExecutionFinished decrements the active gauge and counts the final status.
func (m *Metrics) ExecutionFinished(status string) {
	if m == nil {
		return
	}
	m.activeExecutions.Dec()
	m.executionsTotal.WithLabelValues(status).Inc()
}

// ItemProcessed counts one item outcome.
func (m *Metrics) ItemProcessed(status string) {
	if m == nil {
		return
	}
	m.itemsTotal.WithLabelValues(status).Inc()
}

// ObserveStage records how long a stage handler ran.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserversChanged implements events.Recorder.
func (m *Metrics) ObserversChanged(count int) {
	if m == nil {
		return
	}
	m.eventObservers.Set(float64(count))
}

// EventDropped implements events.Recorder.
func (m *Metrics) EventDropped() {
	if m == nil {
		return
	}
	m.eventsDropped.Inc()
}
