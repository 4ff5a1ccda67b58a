// Package metrics exposes the Prometheus collectors the HTTP host
// process registers and serves at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors the render pipeline updates.
type Metrics struct {
	RenderDuration *prometheus.HistogramVec
	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter
	BrowserPages   prometheus.Gauge
}

// New registers and returns the collector set. Call once per process;
// registering twice panics, matching promauto's behavior.
func New() *Metrics {
	return &Metrics{
		RenderDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentweb_render_duration_seconds",
				Help:    "Render call duration in seconds by backend",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20},
			},
			[]string{"backend"},
		),
		CacheHits: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "agentweb_cache_hits_total",
				Help: "Total number of cache hits",
			},
		),
		CacheMisses: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "agentweb_cache_misses_total",
				Help: "Total number of cache misses",
			},
		),
		BrowserPages: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "agentweb_browser_pages_active",
				Help: "Number of headless browser pages currently checked out of the pool",
			},
		),
	}
}

// ObserveRender records one render call's duration under its backend
// label and updates the hit/miss counters.
func (m *Metrics) ObserveRender(backend string, seconds float64, cached bool) {
	m.RenderDuration.WithLabelValues(backend).Observe(seconds)
	if cached {
		m.CacheHits.Inc()
	} else {
		m.CacheMisses.Inc()
	}
}
