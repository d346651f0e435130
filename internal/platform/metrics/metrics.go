// Package metrics defines the Prometheus collectors exposed on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector. Build one per process with New.
type Metrics struct {
	HTTPRequests   *prometheus.CounterVec
	HTTPDuration   *prometheus.HistogramVec
	ProviderCalls  *prometheus.CounterVec
	ModelFallbacks prometheus.Counter
	RateLimited    prometheus.Counter

	gatherer prometheus.Gatherer
}

// New registers the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg, reg)
}

// NewWithRegistry registers the collectors on reg and serves from g.
func NewWithRegistry(reg prometheus.Registerer, g prometheus.Gatherer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lexivisual_http_requests_total",
				Help: "Total number of HTTP requests by route and status code",
			},
			[]string{"route", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lexivisual_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 60},
			},
			[]string{"route"},
		),
		ProviderCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lexivisual_provider_calls_total",
				Help: "Total number of upstream model calls by model and outcome",
			},
			[]string{"model", "outcome"},
		),
		ModelFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "lexivisual_model_fallbacks_total",
			Help: "Total number of switches from the primary to the fallback model",
		}),
		RateLimited: factory.NewCounter(prometheus.CounterOpts{
			Name: "lexivisual_rate_limited_total",
			Help: "Total number of requests rejected by the rate limiter",
		}),
		gatherer: g,
	}
}

// ObserveRequest records one finished HTTP request.
func (m *Metrics) ObserveRequest(route string, status int, d time.Duration) {
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(d.Seconds())
}

// ObserveProviderCall records one upstream call. outcome is "ok" or an
// error kind.
func (m *Metrics) ObserveProviderCall(model, outcome string) {
	m.ProviderCalls.WithLabelValues(model, outcome).Inc()
}

// Handler serves the exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
