// Package replay drives scripted sessions through a controller backed by an
// in-memory table so prediction drift shows up as a failing fixture.
package replay

import (
	"context"
	"fmt"

	"github.com/danielpatrickdp/launch-predictor/internal/eval"
	"github.com/danielpatrickdp/launch-predictor/internal/history"
	"github.com/danielpatrickdp/launch-predictor/internal/occurrence"
	"github.com/danielpatrickdp/launch-predictor/internal/session"
)

// #region types

// StepResult captures one replayed step.
type StepResult struct {
	Index      int
	Profile    occurrence.Profile
	Predicted  string // "" when there was no prediction
	Confidence float64
	Choice     string
	Outcome    history.Outcome
	Cursor     int
	Unknown    bool
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	TotalSteps   int
	Hits         int
	Misses       int
	Unknown      int
	FinalTable   []occurrence.Record
	FinalHistory history.Snapshot
	Eval         eval.EvalResult
}

// Drift is a step whose result differs from the fixture expectation.
type Drift struct {
	Index    int
	Expected FixtureExpected
	Actual   StepResult
}

func (d Drift) String() string {
	return fmt.Sprintf("step %d: expected predicted=%q outcome=%d, got predicted=%q outcome=%d",
		d.Index, d.Expected.Predicted, d.Expected.Outcome, d.Actual.Predicted, d.Actual.Outcome)
}

// #endregion types

// #region replay

// Replay runs every fixture step through a fresh controller. Steps without a
// profile keep the current one; the first defaults to Admin.
func Replay(ctx context.Context, f *Fixture) ([]StepResult, ReplaySummary, error) {
	opts, err := f.ToOptions()
	if err != nil {
		return nil, ReplaySummary{}, err
	}
	store := occurrence.NewMemoryStore(f.StartTable)
	c, err := session.New(store, opts)
	if err != nil {
		return nil, ReplaySummary{}, err
	}

	profile := occurrence.Admin
	if len(f.Steps) > 0 && f.Steps[0].Profile != "" {
		if profile, err = occurrence.ParseProfile(f.Steps[0].Profile); err != nil {
			return nil, ReplaySummary{}, fmt.Errorf("step 0: %w", err)
		}
	}
	if _, err := c.Start(ctx, profile); err != nil {
		return nil, ReplaySummary{}, fmt.Errorf("start: %w", err)
	}

	results := make([]StepResult, 0, len(f.Steps))
	for i, step := range f.Steps {
		if step.Profile != "" {
			p, err := occurrence.ParseProfile(step.Profile)
			if err != nil {
				return results, ReplaySummary{}, fmt.Errorf("step %d: %w", i, err)
			}
			if p != c.Profile() {
				if _, err := c.SetProfile(ctx, p); err != nil {
					return results, ReplaySummary{}, fmt.Errorf("step %d: %w", i, err)
				}
			}
		}

		res, err := c.Choose(ctx, step.Choice)
		if err != nil {
			return results, ReplaySummary{}, fmt.Errorf("step %d: %w", i, err)
		}
		results = append(results, StepResult{
			Index:      i,
			Profile:    res.Profile,
			Predicted:  res.Predicted.Application,
			Confidence: res.Predicted.Confidence,
			Choice:     res.Chosen,
			Outcome:    res.Outcome,
			Cursor:     res.Cursor,
			Unknown:    res.Unknown,
		})
	}

	snap := c.History()
	summary := Summarize(results, c.Table(), snap)
	return results, summary, nil
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []StepResult, finalTable []occurrence.Record, finalHistory history.Snapshot) ReplaySummary {
	s := ReplaySummary{
		TotalSteps:   len(results),
		FinalTable:   finalTable,
		FinalHistory: finalHistory,
		Eval:         eval.NewEvalHarness(eval.DefaultEvalConfig()).Run(finalHistory),
	}
	for _, r := range results {
		switch {
		case r.Outcome == history.Hit:
			s.Hits++
		default:
			s.Misses++
		}
		if r.Unknown {
			s.Unknown++
		}
	}
	return s
}

// Check compares results against the fixture's expectations.
func Check(f *Fixture, results []StepResult) []Drift {
	var drift []Drift
	for i, want := range f.Expected {
		if i >= len(results) {
			drift = append(drift, Drift{Index: i, Expected: want})
			continue
		}
		got := results[i]
		if got.Predicted != want.Predicted || int(got.Outcome) != want.Outcome {
			drift = append(drift, Drift{Index: i, Expected: want, Actual: got})
		}
	}
	return drift
}

// Expectations returns the fixture expectations that match results exactly,
// for recording a new baseline.
func Expectations(results []StepResult) []FixtureExpected {
	out := make([]FixtureExpected, len(results))
	for i, r := range results {
		out[i] = FixtureExpected{Predicted: r.Predicted, Outcome: int(r.Outcome)}
	}
	return out
}

// #endregion replay
