package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the gateway's collectors on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	Uploads       *prometheus.CounterVec
	StageFailures *prometheus.CounterVec
	RemoteJobs    *prometheus.HistogramVec
	CacheHits     prometheus.Counter
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		Uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "a11y_gateway",
			Name:      "uploads_total",
			Help:      "Uploads received, by job kind and normalization path.",
		}, []string{"kind", "path"}),
		StageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "a11y_gateway",
			Name:      "stage_failures_total",
			Help:      "Failed requests, by job kind and failing stage.",
		}, []string{"kind", "stage"}),
		RemoteJobs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "a11y_gateway",
			Name:      "remote_job_seconds",
			Help:      "Time from asset upload to job completion.",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
		}, []string{"kind", "outcome"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "a11y_gateway",
			Name:      "report_cache_hits_total",
			Help:      "Reports served from the cache.",
		}),
	}
	reg.MustRegister(
		m.Uploads, m.StageFailures, m.RemoteJobs, m.CacheHits,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
