package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are registered against the given registerer. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	requests         *prometheus.CounterVec
	attempts         *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	cacheLookups     *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tutor_requests_total",
				Help: "Tutor requests by mode and outcome",
			},
			[]string{"mode", "outcome"},
		),
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tutor_model_attempts_total",
				Help: "Upstream model attempts by model and result",
			},
			[]string{"model", "result"},
		),
		upstreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tutor_upstream_duration_seconds",
				Help:    "Upstream model call duration in seconds",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
			},
			[]string{"model"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tutor_marketing_cache_lookups_total",
				Help: "Marketing response cache lookups by result",
			},
			[]string{"result"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.attempts, m.upstreamDuration, m.cacheLookups)
	}
	return m
}

func (m *Metrics) ObserveRequest(mode, outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(mode, outcome).Inc()
}

// ObserveAttempt satisfies llm.AttemptObserver.
func (m *Metrics) ObserveAttempt(model string, ok bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := "error"
	if ok {
		result = "ok"
	}
	m.attempts.WithLabelValues(model, result).Inc()
	m.upstreamDuration.WithLabelValues(model).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}
