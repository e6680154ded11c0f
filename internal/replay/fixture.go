package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/launch-predictor/internal/occurrence"
	"github.com/danielpatrickdp/launch-predictor/internal/predictor"
	"github.com/danielpatrickdp/launch-predictor/internal/session"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description string              `json:"description"`
	Capacity    int                 `json:"capacity"`
	Seed        int64               `json:"seed"`
	Policy      string              `json:"policy,omitempty"`
	StartTable  []occurrence.Record `json:"start_table"`
	Steps       []FixtureStep       `json:"steps"`
	Expected    []FixtureExpected   `json:"expected"`
}

// FixtureStep is one user action. A non-empty profile switches the active
// profile before the choice is made.
type FixtureStep struct {
	Profile string `json:"profile,omitempty"`
	Choice  string `json:"choice"`
}

// FixtureExpected captures the prediction shown before a step and its outcome.
type FixtureExpected struct {
	Predicted string `json:"predicted"`
	Outcome   int    `json:"outcome"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("fixture %s: %w", path, err)
	}
	return &f, nil
}

// WriteFixture writes f as indented JSON.
func WriteFixture(path string, f *Fixture) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encode fixture: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write fixture %s: %w", path, err)
	}
	return nil
}

// Validate checks step profiles, expectation count and the start table.
func (f *Fixture) Validate() error {
	if f.Capacity < 0 {
		return fmt.Errorf("capacity %d is negative", f.Capacity)
	}
	for i, s := range f.Steps {
		if s.Profile == "" {
			continue
		}
		if _, err := occurrence.ParseProfile(s.Profile); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}
	if len(f.Expected) > 0 && len(f.Expected) != len(f.Steps) {
		return fmt.Errorf("%d expectations for %d steps", len(f.Expected), len(f.Steps))
	}
	if err := occurrence.Validate(f.StartTable); err != nil {
		return fmt.Errorf("start_table: %w", err)
	}
	return nil
}

// ToOptions converts fixture settings to controller options.
func (f *Fixture) ToOptions() (session.Options, error) {
	opts := session.DefaultOptions()
	if f.Capacity > 0 {
		opts.Capacity = f.Capacity
	}
	opts.Predictor = predictor.DefaultOptions()
	if f.Seed != 0 {
		opts.Predictor.Seed = f.Seed
	}
	policy, err := session.ParsePolicy(f.Policy)
	if err != nil {
		return opts, err
	}
	opts.Policy = policy
	return opts, nil
}

// #endregion fixture-loader
