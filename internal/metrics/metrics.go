// Package metrics exposes the engine's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds every collector the decision pipeline touches.
type Registry struct {
	DecisionsTotal      *prometheus.CounterVec
	DecisionLatency     prometheus.Histogram
	CacheHitRatio       prometheus.Gauge
	PatternMemorySize   *prometheus.GaugeVec
	BiasRejectionsTotal prometheus.Counter
	OutcomesTotal       *prometheus.CounterVec
}

// New registers every collector against prometheus.DefaultRegisterer.
func New() *Registry {
	return &Registry{
		DecisionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "risk_engine",
			Name:      "decisions_total",
			Help:      "Total risk decisions by method and approval outcome.",
		}, []string{"method", "approved"}),
		DecisionLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "risk_engine",
			Name:      "decision_latency_ms",
			Help:      "Decision pipeline latency in milliseconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 25, 50, 100, 250},
		}),
		CacheHitRatio: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "risk_engine",
			Name:      "cache_hit_ratio",
			Help:      "Response cache hit ratio since startup.",
		}),
		PatternMemorySize: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "risk_engine",
			Name:      "pattern_memory_size",
			Help:      "Vector count held in pattern memory per instrument/direction key.",
		}, []string{"key"}),
		BiasRejectionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "risk_engine",
			Name:      "bias_rejections_total",
			Help:      "Total requests rejected by the directional bias guard.",
		}),
		OutcomesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "risk_engine",
			Name:      "outcomes_total",
			Help:      "Total outcome intake results by disposition.",
		}, []string{"disposition"}),
	}
}

// ObserveDecision records a completed decision's method, approval, and
// latency.
func (r *Registry) ObserveDecision(method string, approved bool, durationMs float64) {
	r.DecisionsTotal.WithLabelValues(method, boolLabel(approved)).Inc()
	r.DecisionLatency.Observe(durationMs)
	if method == "fluid_risk_model" {
		return
	}
}

// SetCacheHitRatio updates the cache hit ratio gauge.
func (r *Registry) SetCacheHitRatio(ratio float64) {
	r.CacheHitRatio.Set(ratio)
}

// SetPatternMemorySize updates the per-key vector count gauge.
func (r *Registry) SetPatternMemorySize(key string, size int) {
	r.PatternMemorySize.WithLabelValues(key).Set(float64(size))
}

// IncBiasRejection increments the directional bias rejection counter.
func (r *Registry) IncBiasRejection() {
	r.BiasRejectionsTotal.Inc()
}

// ObserveOutcome records an outcome intake's disposition (accepted, dropped,
// duplicate, rejected).
func (r *Registry) ObserveOutcome(disposition string) {
	r.OutcomesTotal.WithLabelValues(disposition).Inc()
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
