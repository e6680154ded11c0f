package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/danielpatrickdp/launch-predictor/internal/history"
	"github.com/danielpatrickdp/launch-predictor/internal/occurrence"
	"github.com/danielpatrickdp/launch-predictor/internal/predictor"
)

var (
	ErrNotPredicting    = errors.New("session: no prediction is pending")
	ErrEmptyApplication = errors.New("session: application name is empty")
	ErrUnknownPolicy    = errors.New("session: unknown increment policy")
)

// #region state

// State is the controller's position in the predict/record cycle.
type State int

const (
	Idle State = iota
	Predicting
	Recording
)

var stateLabels = [...]string{
	Idle:       "idle",
	Predicting: "predicting",
	Recording:  "recording",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateLabels) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateLabels[s]
}

// #endregion state

// #region policy

// UnknownPolicy says what Choose does when the chosen application has no
// record under the active profile.
type UnknownPolicy string

const (
	PolicyWarn   UnknownPolicy = "warn"   // no-op, logged and flagged
	PolicyIgnore UnknownPolicy = "ignore" // no-op, flagged only
	PolicyInsert UnknownPolicy = "insert" // new record with one occurrence
)

// ParsePolicy accepts warn, ignore or insert (case-insensitive). Empty means warn.
func ParsePolicy(s string) (UnknownPolicy, error) {
	switch p := UnknownPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyWarn, nil
	case PolicyWarn, PolicyIgnore, PolicyInsert:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
}

// #endregion policy

// #region result

// Status is what a presenter redraws from, taken in one consistent read.
type Status struct {
	State      State
	Profile    occurrence.Profile
	Prediction predictor.Prediction
	History    history.Snapshot
}

// CycleResult describes one completed Choose call.
type CycleResult struct {
	CycleID   string
	Profile   occurrence.Profile
	Predicted predictor.Prediction // what the choice was compared against
	Chosen    string
	Outcome   history.Outcome
	Cursor    int
	// Unknown is set when the chosen application had no record for the profile.
	Unknown  bool
	Inserted bool
	// Persisted is false when the save failed and the in-memory table is ahead of storage.
	Persisted bool
	Next      predictor.Prediction
	History   history.Snapshot
}

// Hit reports whether the choice matched the prediction.
func (r CycleResult) Hit() bool { return r.Outcome == history.Hit }

// #endregion result
