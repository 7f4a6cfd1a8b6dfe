package checkpoint

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the checkpoint collectors. Register them on a dedicated
// registry in tests to keep runs independent.
type Metrics struct {
	decisions      *prometheus.CounterVec
	verifyDuration prometheus.Histogram
	trustedRoots   prometheus.Gauge
	trackedIssuers prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "entrypass",
			Subsystem: "checkpoint",
			Name:      "decisions_total",
			Help:      "Checkpoint decisions by result.",
		}, []string{"result"}),
		verifyDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "entrypass",
			Subsystem: "checkpoint",
			Name:      "verify_duration_seconds",
			Help:      "Time spent verifying a pass and its certificate chain.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		trustedRoots: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "entrypass",
			Subsystem: "checkpoint",
			Name:      "trusted_roots",
			Help:      "Number of trusted root certificates.",
		}),
		trackedIssuers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "entrypass",
			Subsystem: "checkpoint",
			Name:      "tracked_issuers",
			Help:      "Issuers currently holding a rate limit bucket.",
		}),
	}
}

func (m *Metrics) observeDecision(r Result) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(string(r)).Inc()
}

func (m *Metrics) observeVerify(seconds float64) {
	if m == nil {
		return
	}
	m.verifyDuration.Observe(seconds)
}

func (m *Metrics) setTrustedRoots(n int) {
	if m == nil {
		return
	}
	m.trustedRoots.Set(float64(n))
}

func (m *Metrics) setTrackedIssuers(n int) {
	if m == nil {
		return
	}
	m.trackedIssuers.Set(float64(n))
}
