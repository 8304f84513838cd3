package highlight

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for rule rebuilds and evaluations.
type Metrics struct {
	evaluations     prometheus.Counter
	highlighted     prometheus.Counter
	evalDuration    prometheus.Histogram
	rebuilds        prometheus.Counter
	rebuildDuration prometheus.Histogram
	checks          *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them with reg when non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		evaluations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gnasty",
			Name:      "highlight_evaluations_total",
			Help:      "Messages evaluated against the highlight rules",
		}),
		highlighted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gnasty",
			Name:      "highlight_matches_total",
			Help:      "Messages that matched at least one highlight rule",
		}),
		evalDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "gnasty",
			Name:      "highlight_evaluation_duration_seconds",
			Help:      "Histogram of highlight evaluation durations",
			Buckets:   []float64{1e-6, 5e-6, 1e-5, 5e-5, 1e-4, 5e-4, 1e-3, 5e-3},
		}),
		rebuilds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gnasty",
			Name:      "highlight_rebuilds_total",
			Help:      "Highlight rule rebuilds",
		}),
		rebuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "gnasty",
			Name:      "highlight_rebuild_duration_seconds",
			Help:      "Histogram of highlight rule rebuild durations",
			Buckets:   prometheus.ExponentialBuckets(1e-5, 4, 8),
		}),
		checks: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "gnasty",
			Name:      "highlight_checks",
			Help:      "Installed highlight checks per category",
		}, []string{"category"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.evaluations,
			m.highlighted,
			m.evalDuration,
			m.rebuilds,
			m.rebuildDuration,
			m.checks,
		)
	}
	return m
}

func (m *Metrics) observeCheck(matched bool, dur time.Duration) {
	if m == nil {
		return
	}
	m.evaluations.Inc()
	if matched {
		m.highlighted.Inc()
	}
	m.evalDuration.Observe(dur.Seconds())
}

func (m *Metrics) observeRebuild(seq Sequence, dur time.Duration) {
	if m == nil {
		return
	}
	m.rebuilds.Inc()
	m.rebuildDuration.Observe(dur.Seconds())
	for category, n := range seq.Counts() {
		m.checks.WithLabelValues(category.String()).Set(float64(n))
	}
}
