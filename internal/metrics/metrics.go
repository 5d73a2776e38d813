// internal/metrics/metrics.go

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors on a private registry
type Metrics struct {
	Registry *prometheus.Registry

	ModelCalls       *prometheus.CounterVec
	ModelDuration    *prometheus.HistogramVec
	Searches         *prometheus.CounterVec
	EventsReturned   prometheus.Histogram
	SkippedGeometry  prometheus.Counter
	ActiveSessions   prometheus.Gauge
	StaleCompletions prometheus.Counter
}

// New creates and registers all collectors
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		ModelCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "locale",
			Name:      "model_calls_total",
			Help:      "Outbound model calls by provider, operation and outcome",
		}, []string{"provider", "operation", "outcome"}),
		ModelDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "locale",
			Name:      "model_call_duration_seconds",
			Help:      "Latency of outbound model calls",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60, 90},
		}, []string{"provider", "operation"}),
		Searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "locale",
			Name:      "searches_total",
			Help:      "Searches by final outcome kind",
		}, []string{"outcome"}),
		EventsReturned: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "locale",
			Name:      "search_events_returned",
			Help:      "Number of event records per completed structured search",
			Buckets:   prometheus.LinearBuckets(0, 5, 10),
		}),
		SkippedGeometry: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "locale",
			Name:      "render_skipped_records_total",
			Help:      "Event records skipped because their location did not parse",
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "locale",
			Name:      "active_sessions",
			Help:      "Sessions currently held in memory",
		}),
		StaleCompletions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "locale",
			Name:      "search_stale_completions_total",
			Help:      "Retrievals discarded because a newer search was issued",
		}),
	}

	m.Registry.MustRegister(
		m.ModelCalls, m.ModelDuration, m.Searches, m.EventsReturned,
		m.SkippedGeometry, m.ActiveSessions, m.StaleCompletions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
