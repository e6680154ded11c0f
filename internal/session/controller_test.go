package session

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/launch-predictor/internal/history"
	"github.com/danielpatrickdp/launch-predictor/internal/logging"
	"github.com/danielpatrickdp/launch-predictor/internal/metrics"
	"github.com/danielpatrickdp/launch-predictor/internal/occurrence"
)

// #region helpers

func browsers() []occurrence.Record {
	return []occurrence.Record{
		{Category: occurrence.WebBrowser, Application: "Chrome", Occurrences: 5, Profile: occurrence.Admin},
		{Category: occurrence.WebBrowser, Application: "Edge", Occurrences: 2, Profile: occurrence.Admin},
	}
}

func newController(t *testing.T, store occurrence.Store, mutate ...func(*Options)) *Controller {
	t.Helper()
	opts := DefaultOptions()
	for _, m := range mutate {
		m(&opts)
	}
	c, err := New(store, opts)
	require.NoError(t, err)
	return c
}

type fakeJournal struct {
	mu      sync.Mutex
	entries []logging.CycleEntry
	err     error
}

func (j *fakeJournal) Append(_ context.Context, e logging.CycleEntry) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return "", j.err
	}
	j.entries = append(j.entries, e)
	return "cycle-" + e.Chosen, nil
}

// #endregion helpers

// #region lifecycle

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, DefaultOptions())
	assert.Error(t, err)

	opts := DefaultOptions()
	opts.Capacity = 0
	_, err = New(occurrence.NewMemoryStore(nil), opts)
	assert.ErrorIs(t, err, history.ErrInvalidCapacity)

	opts = DefaultOptions()
	opts.Policy = "explode"
	_, err = New(occurrence.NewMemoryStore(nil), opts)
	assert.ErrorIs(t, err, ErrUnknownPolicy)
}

func TestController_StartsIdle(t *testing.T) {
	c := newController(t, occurrence.NewMemoryStore(browsers()))
	assert.Equal(t, Idle, c.State())
	assert.Equal(t, "idle", c.State().String())

	_, err := c.Choose(context.Background(), "Chrome")
	assert.ErrorIs(t, err, ErrNotPredicting)
	assert.Equal(t, Idle, c.State())
}

func TestController_ChromeAboveEdge(t *testing.T) {
	ctx := context.Background()
	c := newController(t, occurrence.NewMemoryStore(browsers()))

	p, err := c.Start(ctx, occurrence.Admin)
	require.NoError(t, err)
	assert.True(t, p.OK)
	assert.Equal(t, "Chrome", p.Application)
	assert.Equal(t, Predicting, c.State())

	ranking := c.Ranking()
	require.Len(t, ranking, 2)
	assert.Equal(t, "Edge", ranking[1].Application)
}

func TestController_Cycle(t *testing.T) {
	ctx := context.Background()
	store := occurrence.NewMemoryStore(browsers())
	c := newController(t, store)
	_, err := c.Start(ctx, occurrence.Admin)
	require.NoError(t, err)

	res, err := c.Choose(ctx, " Chrome ")
	require.NoError(t, err)
	assert.True(t, res.Hit())
	assert.Equal(t, "Chrome", res.Chosen)
	assert.Equal(t, 1, res.Cursor)
	assert.True(t, res.Persisted)
	assert.False(t, res.Unknown)
	assert.Equal(t, "Chrome", res.Next.Application)
	assert.Equal(t, Predicting, c.State())

	saved, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, saved[0].Occurrences)
	assert.Equal(t, 2, saved[1].Occurrences)
	assert.Equal(t, 1, store.Saves)

	res, err = c.Choose(ctx, "Edge")
	require.NoError(t, err)
	assert.False(t, res.Hit())
	assert.Equal(t, "Chrome", res.Predicted.Application)
	assert.Equal(t, []history.Outcome{1, 0, 0, 0, 0, 0, 0, 0, 0, 0}, res.History.Actual)
	assert.Equal(t, []history.Outcome{1, 1, 0, 0, 0, 0, 0, 0, 0, 0}, res.History.Predicted)
}

// Enough Edge launches overtake Chrome on the next retrain.
func TestController_RetrainsEveryCycle(t *testing.T) {
	ctx := context.Background()
	c := newController(t, occurrence.NewMemoryStore(browsers()))
	_, err := c.Start(ctx, occurrence.Admin)
	require.NoError(t, err)

	var res CycleResult
	for range 4 {
		res, err = c.Choose(ctx, "Edge")
		require.NoError(t, err)
	}
	assert.Equal(t, "Edge", res.Next.Application)
	assert.Equal(t, "Edge", c.Prediction().Application)
}

func TestController_HistoryWrapsAtCapacity(t *testing.T) {
	ctx := context.Background()
	c := newController(t, occurrence.NewMemoryStore(browsers()), func(o *Options) { o.Capacity = 3 })
	_, err := c.Start(ctx, occurrence.Admin)
	require.NoError(t, err)

	for _, app := range []string{"Chrome", "Edge", "Chrome", "Chrome"} {
		_, err := c.Choose(ctx, app)
		require.NoError(t, err)
	}
	h := c.History()
	assert.Equal(t, []history.Outcome{1, 0, 1}, h.Actual)
	assert.Equal(t, []history.Outcome{1, 1, 1}, h.Predicted)
	assert.Equal(t, 1, h.Cursor)
	assert.Equal(t, 4, h.Written)

	c.ResetHistory()
	h = c.History()
	assert.Equal(t, []history.Outcome{0, 0, 0}, h.Actual)
	assert.Equal(t, 0, h.Cursor)
	assert.Equal(t, "Chrome", c.Prediction().Application)
}

// #endregion lifecycle

// #region profiles

func TestController_EmptyProfileHasNoPrediction(t *testing.T) {
	ctx := context.Background()
	c := newController(t, occurrence.NewMemoryStore(browsers()))
	_, err := c.Start(ctx, occurrence.Admin)
	require.NoError(t, err)

	p, err := c.SetProfile(ctx, occurrence.Guest)
	require.NoError(t, err)
	assert.False(t, p.OK)
	assert.Equal(t, occurrence.Guest, c.Profile())
	assert.Equal(t, Predicting, c.State())
	assert.True(t, c.Model().Empty())

	res, err := c.Choose(ctx, "Chrome")
	require.NoError(t, err)
	assert.False(t, res.Hit())
	assert.True(t, res.Unknown)
}

func TestController_MissingTableStartsEmpty(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	c := newController(t, occurrence.NewMemoryStore(nil), func(o *Options) { o.Metrics = m })

	p, err := c.Start(context.Background(), occurrence.Admin)
	require.NoError(t, err)
	assert.False(t, p.OK)
	assert.Empty(t, c.Table())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StorageErrors.WithLabelValues("load")))
}

func TestController_SetProfileKeepsTable(t *testing.T) {
	ctx := context.Background()
	store := occurrence.NewMemoryStore(occurrence.DefaultTable())
	c := newController(t, store)
	_, err := c.Start(ctx, occurrence.User1)
	require.NoError(t, err)

	_, err = c.Choose(ctx, "Microsoft Word")
	require.NoError(t, err)
	_, err = c.SetProfile(ctx, occurrence.User2)
	require.NoError(t, err)
	_, err = c.SetProfile(ctx, occurrence.User1)
	require.NoError(t, err)

	assert.Equal(t, "Microsoft Word", c.Prediction().Application)
}

func TestController_SetProfileReloadsTable(t *testing.T) {
	ctx := context.Background()
	store := occurrence.NewMemoryStore(nil)
	c := newController(t, store)
	p, err := c.Start(ctx, occurrence.Admin)
	require.NoError(t, err)
	assert.False(t, p.OK)

	// written by another process after startup
	require.NoError(t, store.Save(ctx, []occurrence.Record{
		{Category: occurrence.WebBrowser, Application: "Chrome", Occurrences: 1, Profile: occurrence.Guest},
	}))

	p, err = c.SetProfile(ctx, occurrence.Guest)
	require.NoError(t, err)
	assert.True(t, p.OK)
	assert.Equal(t, "Chrome", p.Application)
	assert.Len(t, c.Table(), 1)
}

func TestController_ChooseReadsLatestTable(t *testing.T) {
	ctx := context.Background()
	store := occurrence.NewMemoryStore(browsers())
	c := newController(t, store)
	_, err := c.Start(ctx, occurrence.Admin)
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, []occurrence.Record{
		{Category: occurrence.WebBrowser, Application: "Chrome", Occurrences: 5, Profile: occurrence.Admin},
		{Category: occurrence.WebBrowser, Application: "Edge", Occurrences: 9, Profile: occurrence.Admin},
	}))

	res, err := c.Choose(ctx, "Edge")
	require.NoError(t, err)
	assert.Equal(t, "Chrome", res.Predicted.Application)
	assert.Equal(t, "Edge", res.Next.Application)
	assert.Equal(t, 10, c.Table()[1].Occurrences)

	onDisk, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, onDisk[1].Occurrences)
}

func TestController_DirtyTableSurvivesProfileSwitch(t *testing.T) {
	ctx := context.Background()
	store := occurrence.NewMemoryStore(browsers())
	c := newController(t, store)
	_, err := c.Start(ctx, occurrence.Admin)
	require.NoError(t, err)

	store.FailSave = true
	_, err = c.Choose(ctx, "Edge")
	require.ErrorIs(t, err, occurrence.ErrStorageWrite)
	require.True(t, c.Dirty())

	_, err = c.SetProfile(ctx, occurrence.Guest)
	require.NoError(t, err)
	_, err = c.SetProfile(ctx, occurrence.Admin)
	require.NoError(t, err)
	assert.Equal(t, 3, c.Table()[1].Occurrences)
}

func TestController_StatusIsOneConsistentRead(t *testing.T) {
	ctx := context.Background()
	c := newController(t, occurrence.NewMemoryStore(browsers()), func(o *Options) { o.Capacity = 3 })
	_, err := c.Start(ctx, occurrence.Admin)
	require.NoError(t, err)
	res, err := c.Choose(ctx, "Chrome")
	require.NoError(t, err)

	st := c.Status()
	assert.Equal(t, Predicting, st.State)
	assert.Equal(t, occurrence.Admin, st.Profile)
	assert.Equal(t, res.Next, st.Prediction)
	assert.Equal(t, res.History, st.History)
	assert.Equal(t, 1.0, st.History.HitRate())
}

func TestController_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := newController(t, occurrence.NewMemoryStore(browsers()))
	_, err := c.Start(ctx, occurrence.Admin)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Idle, c.State())
}

// #endregion profiles

// #region unknown-policy

func TestController_UnknownPolicies(t *testing.T) {
	tests := []struct {
		policy       UnknownPolicy
		wantInserted bool
		wantSaves    int
		wantLog      bool
	}{
		{PolicyWarn, false, 0, true},
		{PolicyIgnore, false, 0, false},
		{PolicyInsert, true, 1, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			ctx := context.Background()
			var buf bytes.Buffer
			logger := zerolog.New(&buf).Level(zerolog.WarnLevel)
			reg := prometheus.NewRegistry()
			m := metrics.New(reg)
			store := occurrence.NewMemoryStore(browsers())
			c := newController(t, store, func(o *Options) {
				o.Policy = tt.policy
				o.Logger = &logger
				o.Metrics = m
			})
			_, err := c.Start(ctx, occurrence.Admin)
			require.NoError(t, err)

			res, err := c.Choose(ctx, "Mozilla Firefox")
			require.NoError(t, err)
			assert.True(t, res.Unknown)
			assert.Equal(t, tt.wantInserted, res.Inserted)
			assert.Equal(t, tt.wantSaves, store.Saves)
			assert.Equal(t, tt.wantLog, bytes.Contains(buf.Bytes(), []byte("Mozilla Firefox")), buf.String())
			assert.Equal(t, 1.0, testutil.ToFloat64(m.UnknownIncrements))

			table := c.Table()
			if tt.wantInserted {
				require.Len(t, table, 3)
				assert.Equal(t, occurrence.Record{
					Category:    occurrence.WebBrowser,
					Application: "Mozilla Firefox",
					Occurrences: 1,
					Profile:     occurrence.Admin,
				}, table[2])
			} else {
				assert.Equal(t, browsers(), table)
			}
		})
	}
}

func TestParsePolicy(t *testing.T) {
	for in, want := range map[string]UnknownPolicy{"": PolicyWarn, "WARN": PolicyWarn, " insert ": PolicyInsert, "ignore": PolicyIgnore} {
		got, err := ParsePolicy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParsePolicy("error")
	assert.ErrorIs(t, err, ErrUnknownPolicy)
}

// #endregion unknown-policy

// #region storage-failure

func TestController_SaveFailureKeepsMemoryAhead(t *testing.T) {
	ctx := context.Background()
	store := occurrence.NewMemoryStore(browsers())
	c := newController(t, store)
	_, err := c.Start(ctx, occurrence.Admin)
	require.NoError(t, err)

	store.FailSave = true
	res, err := c.Choose(ctx, "Edge")
	require.Error(t, err)
	assert.ErrorIs(t, err, occurrence.ErrStorageWrite)
	assert.False(t, res.Persisted)
	assert.True(t, res.Next.OK)
	assert.Equal(t, 1, res.History.Written)
	assert.True(t, c.Dirty())
	assert.Equal(t, Predicting, c.State())
	assert.Equal(t, 3, c.Table()[1].Occurrences)

	onDisk, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, onDisk[1].Occurrences)

	// the next good save catches storage up, even for an unknown application
	store.FailSave = false
	res, err = c.Choose(ctx, "Opera")
	require.NoError(t, err)
	assert.True(t, res.Persisted)
	assert.False(t, c.Dirty())
	onDisk, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, onDisk[1].Occurrences)
}

type brokenStore struct{ occurrence.MemoryStore }

func (b *brokenStore) Save(context.Context, []occurrence.Record) error {
	return errors.New("disk on fire")
}

func TestController_SaveErrorAlwaysWrapsWriteSentinel(t *testing.T) {
	ctx := context.Background()
	store := &brokenStore{MemoryStore: *occurrence.NewMemoryStore(browsers())}
	c := newController(t, store)
	_, err := c.Start(ctx, occurrence.Admin)
	require.NoError(t, err)

	_, err = c.Choose(ctx, "Chrome")
	assert.ErrorIs(t, err, occurrence.ErrStorageWrite)
	assert.Contains(t, err.Error(), "disk on fire")
}

// #endregion storage-failure

// #region journal

func TestController_JournalAndMetrics(t *testing.T) {
	ctx := context.Background()
	j := &fakeJournal{}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	c := newController(t, occurrence.NewMemoryStore(browsers()), func(o *Options) {
		o.Journal = j
		o.Metrics = m
	})
	_, err := c.Start(ctx, occurrence.Admin)
	require.NoError(t, err)

	res, err := c.Choose(ctx, "Chrome")
	require.NoError(t, err)
	_, err = c.Choose(ctx, "Edge")
	require.NoError(t, err)

	assert.Equal(t, "cycle-Chrome", res.CycleID)
	require.Len(t, j.entries, 2)
	first := j.entries[0]
	assert.Equal(t, "Admin", first.Profile)
	assert.Equal(t, "Chrome", first.Predicted)
	assert.Equal(t, 1, first.Outcome)
	assert.True(t, first.Persisted)

	detail, err := first.Detail()
	require.NoError(t, err)
	require.Len(t, detail.Ranking, 2)
	assert.Equal(t, "Chrome", detail.Ranking[0].Application)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Cycles.WithLabelValues("Admin")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Hits.WithLabelValues("Admin")))
}

func TestController_JournalFailureDoesNotFailCycle(t *testing.T) {
	ctx := context.Background()
	j := &fakeJournal{err: errors.New("journal closed")}
	c := newController(t, occurrence.NewMemoryStore(browsers()), func(o *Options) { o.Journal = j })
	_, err := c.Start(ctx, occurrence.Admin)
	require.NoError(t, err)

	res, err := c.Choose(ctx, "Chrome")
	require.NoError(t, err)
	assert.Empty(t, res.CycleID)
}

// #endregion journal

func TestController_ConcurrentChoose(t *testing.T) {
	ctx := context.Background()
	store := occurrence.NewMemoryStore(browsers())
	c := newController(t, store, func(o *Options) { o.Capacity = 4 })
	_, err := c.Start(ctx, occurrence.Admin)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app := "Chrome"
			if i%2 == 1 {
				app = "Edge"
			}
			_, err := c.Choose(ctx, app)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	table := c.Table()
	assert.Equal(t, 15, table[0].Occurrences)
	assert.Equal(t, 12, table[1].Occurrences)
	assert.Equal(t, 20, c.History().Written)
}
