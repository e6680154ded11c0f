// Package metrics exposes the controller's Prometheus counters.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the launch predictor collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	Cycles            *prometheus.CounterVec
	Hits              *prometheus.CounterVec
	UnknownIncrements prometheus.Counter
	StorageErrors     *prometheus.CounterVec
	RetrainSeconds    prometheus.Histogram
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Cycles: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "launchpredict_cycles_total",
				Help: "Completed predict/choose cycles",
			},
			[]string{"profile"},
		),
		Hits: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "launchpredict_hits_total",
				Help: "Cycles where the chosen application matched the prediction",
			},
			[]string{"profile"},
		),
		UnknownIncrements: f.NewCounter(
			prometheus.CounterOpts{
				Name: "launchpredict_unknown_increments_total",
				Help: "Increments for an application with no record under the active profile",
			},
		),
		StorageErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "launchpredict_storage_errors_total",
				Help: "Occurrence store failures",
			},
			[]string{"op"},
		),
		RetrainSeconds: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "launchpredict_retrain_seconds",
				Help:    "Time spent refitting the decision tree",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
		),
	}
}

func (m *Metrics) ObserveCycle(profile string, hit bool) {
	if m == nil {
		return
	}
	m.Cycles.WithLabelValues(profile).Inc()
	if hit {
		m.Hits.WithLabelValues(profile).Inc()
	}
}

func (m *Metrics) ObserveUnknown() {
	if m == nil {
		return
	}
	m.UnknownIncrements.Inc()
}

// ObserveStorageError counts a failed load or save.
func (m *Metrics) ObserveStorageError(op string) {
	if m == nil {
		return
	}
	m.StorageErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) ObserveRetrain(d time.Duration) {
	if m == nil {
		return
	}
	m.RetrainSeconds.Observe(d.Seconds())
}
