package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce             sync.Once
	httpRequestsTotal        *prometheus.CounterVec
	httpLatencySeconds       *prometheus.HistogramVec
	eventsConsumedTotal      *prometheus.CounterVec
	scheduleTransitionsTotal *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the API and
// the event consumer.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "san_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "san_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		eventsConsumedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "san_events_consumed_total",
			Help: "Total number of lifecycle events consumed, by type and outcome.",
		}, []string{"event_type", "outcome"})

		scheduleTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "san_schedule_transitions_total",
			Help: "Total number of schedule state transitions applied.",
		}, []string{"kind", "status"})

		prometheus.MustRegister(httpRequestsTotal, httpLatencySeconds, eventsConsumedTotal, scheduleTransitionsTotal)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// EventsConsumed exposes the counter for consumed lifecycle events.
func EventsConsumed() *prometheus.CounterVec {
	RegisterMetrics()
	return eventsConsumedTotal
}

// ScheduleTransitions exposes the counter for schedule transitions.
func ScheduleTransitions() *prometheus.CounterVec {
	RegisterMetrics()
	return scheduleTransitionsTotal
}
