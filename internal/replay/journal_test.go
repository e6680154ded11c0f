package replay

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/launch-predictor/internal/logging"
	"github.com/danielpatrickdp/launch-predictor/internal/occurrence"
	"github.com/danielpatrickdp/launch-predictor/internal/session"
)

// recorder collects journal entries in order.
type recorder struct {
	entries []logging.CycleEntry
}

func (r *recorder) Append(_ context.Context, e logging.CycleEntry) (string, error) {
	r.entries = append(r.entries, e)
	return "", nil
}

func TestFromJournal_ReplaysLiveSession(t *testing.T) {
	ctx := context.Background()
	start := []occurrence.Record{
		{Category: occurrence.WebBrowser, Application: "Chrome", Occurrences: 5, Profile: occurrence.Admin},
		{Category: occurrence.WebBrowser, Application: "Edge", Occurrences: 2, Profile: occurrence.Admin},
		{Category: occurrence.OfficeSuite, Application: "Word", Occurrences: 1, Profile: occurrence.Guest},
	}
	store := occurrence.NewMemoryStore(start)
	rec := &recorder{}

	opts := session.DefaultOptions()
	opts.Capacity = 4
	opts.Policy = session.PolicyInsert
	opts.Journal = rec
	c, err := session.New(store, opts)
	require.NoError(t, err)

	_, err = c.Start(ctx, occurrence.Admin)
	require.NoError(t, err)
	for _, app := range []string{"Chrome", "Edge", "Firefox"} {
		_, err := c.Choose(ctx, app)
		require.NoError(t, err)
	}
	_, err = c.SetProfile(ctx, occurrence.Guest)
	require.NoError(t, err)
	_, err = c.Choose(ctx, "Word")
	require.NoError(t, err)

	current, err := store.Load(ctx)
	require.NoError(t, err)

	f, err := FromJournal(rec.entries, current, 4, 42)
	require.NoError(t, err)
	assert.Equal(t, start, f.StartTable)
	assert.Equal(t, "insert", f.Policy)
	require.Len(t, f.Steps, 4)
	assert.Equal(t, "Admin", f.Steps[0].Profile)
	assert.Empty(t, f.Steps[1].Profile)
	assert.Equal(t, "Guest", f.Steps[3].Profile)

	results, _, err := Replay(ctx, f)
	require.NoError(t, err)
	assert.Empty(t, Check(f, results))
}

func TestFromJournal_MismatchedTable(t *testing.T) {
	entries := []logging.CycleEntry{
		{CycleID: "c1", Profile: "Admin", Chosen: "Chrome", Outcome: 1, Persisted: true},
	}
	_, err := FromJournal(entries, nil, 3, 42)
	assert.Error(t, err)

	_, err = FromJournal(entries, []occurrence.Record{
		{Category: occurrence.WebBrowser, Application: "Chrome", Occurrences: 0, Profile: occurrence.Admin},
	}, 3, 42)
	assert.Error(t, err)
}

func TestFromJournal_SkipsUnknownWithoutInsert(t *testing.T) {
	current := []occurrence.Record{
		{Category: occurrence.WebBrowser, Application: "Chrome", Occurrences: 3, Profile: occurrence.Admin},
	}
	entries := []logging.CycleEntry{
		{Profile: "Admin", Chosen: "Notepad", Unknown: true, Reason: "unknown application"},
		{Profile: "Admin", Predicted: "Chrome", Chosen: "Chrome", Outcome: 1},
	}
	f, err := FromJournal(entries, current, 3, 42)
	require.NoError(t, err)
	assert.Empty(t, f.Policy)
	assert.Equal(t, 2, f.StartTable[0].Occurrences)
	assert.Equal(t, 3, current[0].Occurrences)
}
