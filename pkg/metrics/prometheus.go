package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusObserver exports events as counters and value histograms.
type PrometheusObserver struct {
	registry *prometheus.Registry
	events   *prometheus.CounterVec
	values   *prometheus.HistogramVec
	sessions prometheus.Gauge
}

func NewPrometheusObserver(namespace string) *PrometheusObserver {
	if namespace == "" {
		namespace = "sprachbot"
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)
	return &PrometheusObserver{
		registry: reg,
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Number of bot events by name",
		}, []string{"event"}),
		values: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_value",
			Help:      "Observed event values (seconds for latencies, counts for chunking)",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
		}, []string{"event"}),
		sessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Conversations with an unfinished interview",
		}),
	}
}

func (p *PrometheusObserver) RecordEvent(ev MetricsEvent) {
	p.events.WithLabelValues(ev.Name).Inc()
	if ev.Value != 0 {
		p.values.WithLabelValues(ev.Name).Observe(ev.Value)
	}
	switch ev.Name {
	case EventInterviewStarted:
		p.sessions.Inc()
	case EventInterviewCompleted:
		p.sessions.Dec()
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (p *PrometheusObserver) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (p *PrometheusObserver) Registry() *prometheus.Registry {
	return p.registry
}
