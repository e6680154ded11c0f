package replay

import (
	"fmt"

	"github.com/danielpatrickdp/launch-predictor/internal/logging"
	"github.com/danielpatrickdp/launch-predictor/internal/occurrence"
)

// #region from-journal

// FromJournal builds a fixture from journaled cycles, oldest first. The start
// table is recovered by rewinding current (the table as stored after the last
// cycle) through every increment and insert the cycles made. The rewind fails
// when current cannot have been produced by those cycles.
func FromJournal(entries []logging.CycleEntry, current []occurrence.Record, capacity int, seed int64) (*Fixture, error) {
	table := append([]occurrence.Record(nil), current...)
	policy := ""

	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		profile, err := occurrence.ParseProfile(e.Profile)
		if err != nil {
			return nil, fmt.Errorf("cycle %s: %w", e.CycleID, err)
		}
		inserted := e.Reason == "inserted"
		if inserted {
			policy = "insert"
		}
		if e.Unknown && !inserted {
			continue
		}
		if table, err = rewind(table, e.Chosen, profile, inserted); err != nil {
			return nil, fmt.Errorf("cycle %s: %w", e.CycleID, err)
		}
	}

	f := &Fixture{
		Description: fmt.Sprintf("exported from %d journaled cycles", len(entries)),
		Capacity:    capacity,
		Seed:        seed,
		Policy:      policy,
		StartTable:  table,
		Steps:       make([]FixtureStep, len(entries)),
		Expected:    make([]FixtureExpected, len(entries)),
	}
	last := ""
	for i, e := range entries {
		step := FixtureStep{Choice: e.Chosen}
		if e.Profile != last {
			step.Profile = e.Profile
			last = e.Profile
		}
		f.Steps[i] = step
		f.Expected[i] = FixtureExpected{Predicted: e.Predicted, Outcome: e.Outcome}
	}
	return f, f.Validate()
}

// rewind undoes one cycle's table change. An inserted record started at one
// occurrence, so it is removed once it drops back to zero.
func rewind(table []occurrence.Record, application string, profile occurrence.Profile, inserted bool) ([]occurrence.Record, error) {
	for i, r := range table {
		if r.Application != application || r.Profile != profile {
			continue
		}
		if r.Occurrences == 0 {
			return nil, fmt.Errorf("%s under %s has no occurrences left to rewind", application, profile)
		}
		table[i].Occurrences--
		if inserted && table[i].Occurrences == 0 {
			table = append(table[:i], table[i+1:]...)
		}
		return table, nil
	}
	return nil, fmt.Errorf("no record for %s under %s", application, profile)
}

// #endregion from-journal
