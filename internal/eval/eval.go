// Package eval scores a prediction history window. Results are informational
// and never block a cycle.
package eval

import (
	"fmt"

	"github.com/danielpatrickdp/launch-predictor/internal/history"
)

// #region eval-harness
// EvalHarness checks prediction accuracy over the history window.
type EvalHarness struct {
	config EvalConfig
}

// NewEvalHarness creates an eval harness with the given configuration.
func NewEvalHarness(config EvalConfig) *EvalHarness {
	return &EvalHarness{config: config}
}

// Run evaluates the filled part of snap.
func (h *EvalHarness) Run(snap history.Snapshot) EvalResult {
	var metrics []EvalMetric
	passed := true
	var failReasons []string

	window := Window(snap)
	written := float64(snap.Written)
	enough := snap.Written >= h.config.MinSamples

	// 1. Hit rate over the window, enforced once enough cycles are in
	rate := hitRate(window)
	ratePass := !enough || rate >= h.config.MinHitRate
	metrics = append(metrics, EvalMetric{
		Name:  "hit_rate",
		Value: rate,
		Pass:  ratePass,
	})
	if !ratePass {
		passed = false
		failReasons = append(failReasons, fmt.Sprintf("hit rate %.2f below %.2f", rate, h.config.MinHitRate))
	}

	// 2. Total cycles: informational
	metrics = append(metrics, EvalMetric{
		Name:  "written",
		Value: written,
		Pass:  enough,
	})

	// 3. Longest run of misses inside the window
	streak := longestMissStreak(window)
	streakPass := h.config.MaxMissStreak <= 0 || streak <= h.config.MaxMissStreak
	metrics = append(metrics, EvalMetric{
		Name:  "longest_miss_streak",
		Value: float64(streak),
		Pass:  streakPass,
	})
	if !streakPass {
		passed = false
		failReasons = append(failReasons, fmt.Sprintf("%d consecutive misses exceeds %d", streak, h.config.MaxMissStreak))
	}

	reason := "all checks passed"
	switch {
	case !passed:
		reason = fmt.Sprintf("eval failed: %s", failReasons[0])
		if len(failReasons) > 1 {
			reason = fmt.Sprintf("eval failed: %d checks: %s", len(failReasons), failReasons[0])
		}
	case !enough:
		reason = fmt.Sprintf("insufficient samples: %d of %d", snap.Written, h.config.MinSamples)
	}

	return EvalResult{
		Passed:  passed,
		Metrics: metrics,
		Reason:  reason,
	}
}

// #endregion eval-harness

// #region helpers
// Window returns the filled actual outcomes oldest first.
func Window(snap history.Snapshot) []history.Outcome {
	filled := snap.Filled()
	if filled < len(snap.Actual) {
		return append([]history.Outcome(nil), snap.Actual[:filled]...)
	}
	out := make([]history.Outcome, 0, filled)
	out = append(out, snap.Actual[snap.Cursor:]...)
	return append(out, snap.Actual[:snap.Cursor]...)
}

func hitRate(window []history.Outcome) float64 {
	if len(window) == 0 {
		return 0
	}
	hits := 0
	for _, o := range window {
		if o == history.Hit {
			hits++
		}
	}
	return float64(hits) / float64(len(window))
}

func longestMissStreak(window []history.Outcome) int {
	longest, run := 0, 0
	for _, o := range window {
		if o == history.Miss {
			run++
			longest = max(longest, run)
		} else {
			run = 0
		}
	}
	return longest
}

// #endregion helpers
