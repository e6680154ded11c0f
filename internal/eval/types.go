package eval

// #region eval-config
// EvalConfig holds the accuracy thresholds for a history window.
type EvalConfig struct {
	MinHitRate    float64 // fail if the window hit rate is below this
	MinSamples    int     // cycles required before MinHitRate applies
	MaxMissStreak int     // fail if consecutive misses exceed this (0 = off)
}

// DefaultEvalConfig returns the defaults used by the controller binary.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		MinHitRate:    0.5,
		MinSamples:    5,
		MaxMissStreak: 0,
	}
}

// #endregion eval-config

// #region eval-metric
// EvalMetric captures a single check result.
type EvalMetric struct {
	Name  string
	Value float64
	Pass  bool
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the output of one accuracy evaluation.
type EvalResult struct {
	Passed  bool
	Metrics []EvalMetric
	Reason  string
}

// Metric looks up a metric by name.
func (r EvalResult) Metric(name string) (EvalMetric, bool) {
	for _, m := range r.Metrics {
		if m.Name == name {
			return m, true
		}
	}
	return EvalMetric{}, false
}

// #endregion eval-result
