package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// check outcomes reported by /check.
const (
	checkMatched   = "matched"
	checkUnmatched = "unmatched"
	checkInvalid   = "invalid"
	checkTooLarge  = "too_large"
)

// Metrics holds the API collectors. Every request counter is labelled with
// the route name so /check and /rules traffic can be told apart from the
// history and stream endpoints.
type Metrics struct {
	registry *prometheus.Registry

	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	rateLimited *prometheus.CounterVec
	checks      *prometheus.CounterVec
	streams     *prometheus.GaugeVec
	deliveries  *prometheus.CounterVec
	writeErrors prometheus.Counter
}

func newMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	opts := func(name, help string) prometheus.Opts {
		return prometheus.Opts{Namespace: "gnasty", Subsystem: "api", Name: name, Help: help}
	}
	m := &Metrics{
		registry: registry,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts(opts(
			"requests_total", "API requests by route, method and status code.",
		)), []string{"route", "method", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gnasty",
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "API request latency by route. Stream routes are excluded.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"route"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts(opts(
			"rate_limited_total", "Requests refused by the per-client limiter of a route.",
		)), []string{"route"}),
		checks: prometheus.NewCounterVec(prometheus.CounterOpts(opts(
			"check_results_total", "Outcomes of /check evaluations.",
		)), []string{"result"}),
		streams: prometheus.NewGaugeVec(prometheus.GaugeOpts(opts(
			"stream_clients", "Connected highlight stream clients.",
		)), []string{"transport"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts(opts(
			"stream_events_total", "Highlight events offered to stream clients.",
		)), []string{"transport", "outcome"}),
		writeErrors: prometheus.NewCounter(prometheus.CounterOpts(opts(
			"sink_write_errors_total", "Highlight events the sink failed to persist.",
		))),
	}
	registry.MustRegister(
		m.requests,
		m.latency,
		m.rateLimited,
		m.checks,
		m.streams,
		m.deliveries,
		m.writeErrors,
	)
	return m
}

// Handler serves the registry the collectors live in.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observeRequest(rt route, method string, code int, dur time.Duration) {
	m.requests.WithLabelValues(rt.name, method, strconv.Itoa(code)).Inc()
	if rt.name == routeStream || rt.name == routeWS {
		return
	}
	m.latency.WithLabelValues(rt.name).Observe(dur.Seconds())
}

func (m *Metrics) limited(rt route) {
	m.rateLimited.WithLabelValues(rt.name).Inc()
}

func (m *Metrics) checkResult(result string) {
	m.checks.WithLabelValues(result).Inc()
}

func (m *Metrics) streamClient(transport string, delta float64) {
	m.streams.WithLabelValues(transport).Add(delta)
}

func (m *Metrics) delivered(transport string) {
	m.deliveries.WithLabelValues(transport, "sent").Inc()
}

func (m *Metrics) dropped(transport string) {
	m.deliveries.WithLabelValues(transport, "dropped").Inc()
}

func (m *Metrics) writeFailed() {
	m.writeErrors.Inc()
}
