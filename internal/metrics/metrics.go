// Package metrics provides Prometheus metrics for the proxy.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Default histogram buckets. Remote fetches can be slow, hence the long tail.
var defaultBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}

// Metrics holds all Prometheus metric collectors for the proxy.
type Metrics struct {
	Registry *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	FetchDuration  prometheus.Histogram
	FetchResponses *prometheus.CounterVec
	FetchFailures  *prometheus.CounterVec
	FetchBytes     prometheus.Counter
}

// New creates a Metrics instance with a custom registry and all collectors registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		Registry: reg,

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "article_proxy_http_requests_total",
			Help: "Total inbound HTTP requests.",
		}, []string{"method", "status_code", "route"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "article_proxy_http_request_duration_seconds",
			Help:    "Inbound HTTP request latency in seconds.",
			Buckets: defaultBuckets,
		}, []string{"method", "status_code", "route"}),

		RequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "article_proxy_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed.",
		}),

		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "article_proxy_fetch_duration_seconds",
			Help:    "Outbound fetch latency in seconds, up to response headers.",
			Buckets: defaultBuckets,
		}),

		FetchResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "article_proxy_fetch_responses_total",
			Help: "Total outbound fetch responses by remote status code.",
		}, []string{"status_code"}),

		FetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "article_proxy_fetch_failures_total",
			Help: "Outbound fetches that produced no usable body, by stage.",
		}, []string{"stage"}),

		FetchBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "article_proxy_fetch_bytes_total",
			Help: "Total bytes of remote bodies returned to clients.",
		}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.RequestsInFlight,
		m.FetchDuration,
		m.FetchResponses,
		m.FetchFailures,
		m.FetchBytes,
	)

	return m
}

// knownMethods lists the allowed HTTP method label values (bounded cardinality).
var knownMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true,
	"PATCH": true, "HEAD": true, "OPTIONS": true,
}

// NormalizeMethod returns a bounded HTTP method label for Prometheus metrics.
// Non-standard methods are mapped to "other" to prevent cardinality explosion.
func NormalizeMethod(method string) string {
	if knownMethods[method] {
		return method
	}
	return "other"
}

// knownRoutes lists the fixed route label values. Routes match exactly.
var knownRoutes = map[string]bool{
	"/": true, "/main.css": true, "/a": true,
	"/healthz": true, "/proxy/status": true,
}

// NormalizePath returns a bounded route label for Prometheus metrics.
// scrapePath is the configured exposition path and is kept as its own label.
func NormalizePath(path, scrapePath string) string {
	if knownRoutes[path] || (scrapePath != "" && path == scrapePath) {
		return path
	}
	return "other"
}
