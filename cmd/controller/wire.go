package main

import (
	"context"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/danielpatrickdp/launch-predictor/internal/config"
	"github.com/danielpatrickdp/launch-predictor/internal/logging"
	"github.com/danielpatrickdp/launch-predictor/internal/metrics"
	"github.com/danielpatrickdp/launch-predictor/internal/occurrence"
	"github.com/danielpatrickdp/launch-predictor/internal/predictor"
	"github.com/danielpatrickdp/launch-predictor/internal/session"
)

// #region config
func loadConfig(f *flags) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if f.configPath != "" {
		cfg, err = config.LoadFromPath(f.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if f.capacity != 0 {
		cfg.History.Capacity = f.capacity
	}
	if f.backend != "" {
		cfg.Storage.Backend = f.backend
	}
	if f.storePath != "" {
		cfg.SetLocation(f.storePath)
	}
	if f.profile != "" {
		cfg.Session.Profile = f.profile
	}
	if f.verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// #endregion config

// #region app
// app holds everything a running controller owns.
type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	store    occurrence.Store
	journal  *logging.Journal
	registry *prometheus.Registry
	ctrl     *session.Controller
}

func newApp(ctx context.Context, cfg *config.Config, logOut io.Writer) (*app, error) {
	a := &app{
		cfg:      cfg,
		log:      cfg.Logging.NewLogger(logOut),
		registry: prometheus.NewRegistry(),
	}

	backend, err := occurrence.ParseBackend(cfg.Storage.Backend)
	if err != nil {
		return nil, err
	}
	if a.store, err = occurrence.Open(ctx, backend, cfg.Location()); err != nil {
		return nil, fmt.Errorf("open %s store: %w", backend, err)
	}

	opts := session.DefaultOptions()
	opts.Capacity = cfg.History.Capacity
	opts.Predictor = predictor.Options{
		Seed:            cfg.Predictor.Seed,
		MaxDepth:        cfg.Predictor.MaxDepth,
		MinSamplesSplit: 2,
	}
	opts.Policy = session.UnknownPolicy(cfg.Session.UnknownPolicy)
	opts.Logger = &a.log
	opts.Metrics = metrics.New(a.registry)

	if cfg.Journal.Path != "" {
		if a.journal, err = logging.OpenJournal(cfg.Journal.Path); err != nil {
			a.Close()
			return nil, err
		}
		opts.Journal = a.journal
	}

	if a.ctrl, err = session.New(a.store, opts); err != nil {
		a.Close()
		return nil, err
	}

	a.log.Info().
		Str("component", "store").
		Str("backend", string(backend)).
		Int("capacity", cfg.History.Capacity).
		Str("policy", cfg.Session.UnknownPolicy).
		Msg("controller ready")
	return a, nil
}

// start activates the configured profile.
func (a *app) start(ctx context.Context) (predictor.Prediction, error) {
	profile, err := occurrence.ParseProfile(a.cfg.Session.Profile)
	if err != nil {
		return predictor.Prediction{}, err
	}
	return a.ctrl.Start(ctx, profile)
}

func (a *app) Close() {
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.log.Warn().Err(err).Msg("close journal")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("close store")
		}
	}
}

// #endregion app
