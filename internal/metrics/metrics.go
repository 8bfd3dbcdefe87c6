package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry         *prometheus.Registry
	cacheRequests    *prometheus.CounterVec
	upstreamErrors   *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	cacheEntries     prometheus.Gauge
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	cacheRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pws_cache_requests_total",
		Help: "Total cache lookups by outcome",
	}, []string{"resource", "status"})

	upstreamErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pws_upstream_errors_total",
		Help: "Total failed upstream fetches",
	}, []string{"resource"})

	upstreamDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pws_upstream_duration_seconds",
		Help:    "Upstream fetch latency",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"resource"})

	cacheEntries := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pws_cache_entries",
		Help: "Number of keys held in the response cache",
	})

	registry.MustRegister(cacheRequests, upstreamErrors, upstreamDuration, cacheEntries)

	return &Metrics{
		registry:         registry,
		cacheRequests:    cacheRequests,
		upstreamErrors:   upstreamErrors,
		upstreamDuration: upstreamDuration,
		cacheEntries:     cacheEntries,
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordCacheRequest(resource string, status string) {
	if m == nil {
		return
	}
	m.cacheRequests.WithLabelValues(resource, status).Inc()
}

func (m *Metrics) RecordUpstreamError(resource string) {
	if m == nil {
		return
	}
	m.upstreamErrors.WithLabelValues(resource).Inc()
}

func (m *Metrics) ObserveUpstream(resource string, d time.Duration) {
	if m == nil {
		return
	}
	m.upstreamDuration.WithLabelValues(resource).Observe(d.Seconds())
}

func (m *Metrics) SetCacheEntries(n int) {
	if m == nil {
		return
	}
	m.cacheEntries.Set(float64(n))
}
