// Package session runs the predict, choose and record cycle for one active
// profile over an occurrence store.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/danielpatrickdp/launch-predictor/internal/history"
	"github.com/danielpatrickdp/launch-predictor/internal/logging"
	"github.com/danielpatrickdp/launch-predictor/internal/metrics"
	"github.com/danielpatrickdp/launch-predictor/internal/occurrence"
	"github.com/danielpatrickdp/launch-predictor/internal/predictor"
)

// #region options

// Journal receives one entry per completed cycle.
type Journal interface {
	Append(ctx context.Context, entry logging.CycleEntry) (string, error)
}

// Options configures a Controller. Logger, Journal and Metrics are optional.
type Options struct {
	Capacity  int
	Predictor predictor.Options
	Policy    UnknownPolicy
	Logger    *zerolog.Logger
	Journal   Journal
	Metrics   *metrics.Metrics
}

// DefaultOptions returns a ten-slot history, seed 42 and the warn policy.
func DefaultOptions() Options {
	return Options{
		Capacity:  10,
		Predictor: predictor.DefaultOptions(),
		Policy:    PolicyWarn,
	}
}

// #endregion options

// #region controller

// Controller owns the active profile, the current prediction and the history
// rings. All methods are serialized by one mutex.
type Controller struct {
	mu    sync.Mutex
	store occurrence.Store
	opts  Options
	log   zerolog.Logger

	state      State
	profile    occurrence.Profile
	table      []occurrence.Record
	loaded     bool
	dirty      bool // table holds changes the store has not accepted
	model      *predictor.Model
	prediction predictor.Prediction
	ranking    []predictor.Ranked
	history    *history.Pair
}

// New returns an Idle controller. Call Start to load the table and predict.
func New(store occurrence.Store, opts Options) (*Controller, error) {
	if store == nil {
		return nil, errors.New("session: nil store")
	}
	pair, err := history.NewPair(opts.Capacity)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	policy, err := ParsePolicy(string(opts.Policy))
	if err != nil {
		return nil, err
	}
	opts.Policy = policy

	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	return &Controller{
		store:   store,
		opts:    opts,
		log:     logger.With().Str("component", "session").Logger(),
		state:   Idle,
		history: pair,
	}, nil
}

// #endregion controller

// #region profile

// Start (re)loads the table from the store, activates profile and publishes
// the first prediction. Pending unsaved changes are discarded.
func (c *Controller) Start(ctx context.Context, profile occurrence.Profile) (predictor.Prediction, error) {
	if err := ctx.Err(); err != nil {
		return predictor.Prediction{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dirty {
		c.log.Warn().Msg("discarding unsaved table changes on start")
	}
	c.load(ctx)
	c.profile = profile
	c.retrain()
	c.state = Predicting
	return c.prediction, nil
}

// SetProfile switches the active profile and re-predicts. The table is reread
// from the store first unless it holds changes the store has not accepted.
func (c *Controller) SetProfile(ctx context.Context, profile occurrence.Profile) (predictor.Prediction, error) {
	if err := ctx.Err(); err != nil {
		return predictor.Prediction{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.refresh(ctx)
	c.profile = profile
	c.retrain()
	c.state = Predicting
	return c.prediction, nil
}

// load reads the store. An unavailable store yields an empty table.
func (c *Controller) load(ctx context.Context) {
	records, err := c.store.Load(ctx)
	if err != nil {
		c.opts.Metrics.ObserveStorageError("load")
		c.log.Warn().Err(err).Msg("occurrence table unavailable, starting empty")
		records = nil
	}
	c.table = records
	c.loaded = true
	c.dirty = false
}

// refresh rereads the store so changes made by other processes are seen. A
// dirty table is kept, and so is a loaded table when the read fails.
func (c *Controller) refresh(ctx context.Context) {
	if c.dirty {
		c.log.Debug().Msg("table ahead of storage, not reloading")
		return
	}
	if !c.loaded {
		c.load(ctx)
		return
	}
	records, err := c.store.Load(ctx)
	if err != nil {
		c.opts.Metrics.ObserveStorageError("load")
		c.log.Warn().Err(err).Msg("reload failed, keeping in-memory table")
		return
	}
	c.table = records
}

// retrain refits on the active profile and refreshes the prediction.
func (c *Controller) retrain() {
	records := occurrence.FilterByProfile(c.table, c.profile)

	start := time.Now()
	model, err := predictor.Train(records, c.opts.Predictor)
	c.opts.Metrics.ObserveRetrain(time.Since(start))
	if err != nil {
		c.log.Error().Err(err).Str("profile", c.profile.String()).Msg("retrain failed")
		model, _ = predictor.Train(nil, c.opts.Predictor)
	}

	c.model = model
	c.ranking = model.Rank(records)
	c.prediction = predictor.PredictTop(model, records)

	ev := c.log.Debug().
		Str("profile", c.profile.String()).
		Int("records", len(records)).
		Int("depth", model.Depth())
	if c.prediction.OK {
		ev.Str("predicted", c.prediction.Application).Float64("confidence", c.prediction.Confidence)
	}
	ev.Msg("retrained")
}

// #endregion profile

// #region choose

// Choose records the user's pick against the pending prediction, rereads the
// table, increments the (application, profile) record, saves, retrains and
// re-predicts.
//
// A save failure does not roll anything back: the returned result carries the
// new prediction and history, Persisted is false, and the error wraps
// occurrence.ErrStorageWrite. The next successful save catches storage up.
func (c *Controller) Choose(ctx context.Context, application string) (CycleResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	application = strings.TrimSpace(application)
	if c.state != Predicting {
		return CycleResult{}, fmt.Errorf("choose %q in state %s: %w", application, c.state, ErrNotPredicting)
	}
	if application == "" {
		return CycleResult{}, ErrEmptyApplication
	}

	c.state = Recording
	defer func() { c.state = Predicting }()

	c.refresh(ctx)

	predicted := c.prediction
	ranking := c.ranking
	hit := predicted.OK && predicted.Application == application
	res := CycleResult{
		Profile:   c.profile,
		Predicted: predicted,
		Chosen:    application,
		Outcome:   history.OutcomeOf(hit),
	}

	cursor, err := c.history.Record(history.Hit, res.Outcome)
	if err != nil {
		return res, fmt.Errorf("record history: %w", err)
	}
	res.Cursor = cursor

	changed := c.increment(application, &res)

	var saveErr error
	if changed || c.dirty {
		if err := c.store.Save(ctx, c.table); err != nil {
			c.dirty = true
			c.opts.Metrics.ObserveStorageError("save")
			if !errors.Is(err, occurrence.ErrStorageWrite) {
				err = fmt.Errorf("%w: %w", occurrence.ErrStorageWrite, err)
			}
			saveErr = fmt.Errorf("choose %q: %w", application, err)
			c.log.Error().Err(err).Str("application", application).Msg("save failed, in-memory table is ahead of storage")
		} else {
			c.dirty = false
		}
	}
	res.Persisted = !c.dirty

	c.retrain()
	res.Next = c.prediction
	res.History = c.history.Snapshot()

	c.opts.Metrics.ObserveCycle(c.profile.String(), hit)
	res.CycleID = c.journal(ctx, res, ranking)

	c.log.Info().
		Str("profile", c.profile.String()).
		Str("predicted", predicted.Application).
		Str("chosen", application).
		Bool("hit", hit).
		Int("cursor", cursor).
		Msg("cycle")

	return res, saveErr
}

// increment applies the chosen application to the table, following the
// unknown policy when there is no record for it. Reports whether the table changed.
func (c *Controller) increment(application string, res *CycleResult) bool {
	updated, ok := occurrence.Increment(c.table, application, c.profile)
	if ok {
		c.table = updated
		return true
	}

	res.Unknown = true
	c.opts.Metrics.ObserveUnknown()

	switch c.opts.Policy {
	case PolicyIgnore:
		return false
	case PolicyInsert:
		category, found := occurrence.CategoryOf(c.table, application)
		if !found {
			category = occurrence.Categories()[0]
		}
		c.table, res.Inserted = occurrence.Insert(c.table, occurrence.Record{
			Category:    category,
			Application: application,
			Occurrences: 1,
			Profile:     c.profile,
		})
		c.log.Info().Str("application", application).Str("category", category.String()).
			Str("profile", c.profile.String()).Msg("inserted new record")
		return res.Inserted
	default:
		c.log.Warn().Str("application", application).Str("profile", c.profile.String()).
			Msg("no record for application under profile, table unchanged")
		return false
	}
}

func (c *Controller) journal(ctx context.Context, res CycleResult, ranking []predictor.Ranked) string {
	if c.opts.Journal == nil {
		return ""
	}

	detail := logging.CycleDetail{
		Confidence: res.Predicted.Confidence,
		HitRate:    c.history.HitRate(),
		Records:    len(occurrence.FilterByProfile(c.table, c.profile)),
		TreeDepth:  c.model.Depth(),
	}
	for _, r := range ranking {
		detail.Ranking = append(detail.Ranking, logging.RankedLabel{Application: r.Application, Score: r.Score})
	}
	detailJSON, err := json.Marshal(detail)
	if err != nil {
		c.log.Warn().Err(err).Msg("encode cycle detail")
	}

	var reason string
	switch {
	case res.Inserted:
		reason = "inserted"
	case res.Unknown:
		reason = "unknown application"
	case !res.Persisted:
		reason = "save failed"
	}

	id, err := c.opts.Journal.Append(ctx, logging.CycleEntry{
		Profile:    res.Profile.String(),
		Predicted:  res.Predicted.Application,
		Chosen:     res.Chosen,
		Outcome:    int(res.Outcome),
		Cursor:     res.Cursor,
		Persisted:  res.Persisted,
		Unknown:    res.Unknown,
		Reason:     reason,
		DetailJSON: string(detailJSON),
	})
	if err != nil {
		c.log.Warn().Err(err).Msg("journal append failed")
		return ""
	}
	return id
}

// #endregion choose

// #region accessors

// Prediction returns the pending prediction.
func (c *Controller) Prediction() predictor.Prediction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prediction
}

// Ranking returns the full ranking behind the pending prediction.
func (c *Controller) Ranking() []predictor.Ranked {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]predictor.Ranked(nil), c.ranking...)
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Profile() occurrence.Profile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.profile
}

// Status copies the state, profile, prediction and history under one lock.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		State:      c.state,
		Profile:    c.profile,
		Prediction: c.prediction,
		History:    c.history.Snapshot(),
	}
}

// History copies both history rings.
func (c *Controller) History() history.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history.Snapshot()
}

// Model returns the tree fitted for the active profile. Models are never
// mutated after training, so the pointer is safe to read concurrently.
func (c *Controller) Model() *predictor.Model {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.model
}

// Table copies the in-memory occurrence table (all profiles).
func (c *Controller) Table() []occurrence.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]occurrence.Record(nil), c.table...)
}

// Dirty reports whether the in-memory table is ahead of storage.
func (c *Controller) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty
}

// ResetHistory zeroes both rings. The table and prediction are untouched.
func (c *Controller) ResetHistory() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history.Reset()
	c.log.Debug().Msg("history reset")
}

// #endregion accessors
