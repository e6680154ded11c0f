package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/danielpatrickdp/launch-predictor/internal/codec"
	"github.com/danielpatrickdp/launch-predictor/internal/occurrence"
)

// #region init-cmd
func initCmd(f *flags) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default occurrence table to the configured store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(f)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			backend, err := occurrence.ParseBackend(cfg.Storage.Backend)
			if err != nil {
				return err
			}
			store, err := occurrence.Open(ctx, backend, cfg.Location())
			if err != nil {
				return err
			}
			defer store.Close()

			existing, err := store.Load(ctx)
			if err == nil && len(existing) > 0 && !force {
				return fmt.Errorf("%s store already holds %d records (use --force to overwrite)", backend, len(existing))
			}

			table := occurrence.DefaultTable()
			if err := store.Save(ctx, table); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d records to %s store\n", len(table), backend)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing table")
	return cmd
}

// #endregion init-cmd

// #region serve-cmd
func serveCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Expose the controller to a presenter over gRPC",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(f)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()
			if _, err := a.start(ctx); err != nil {
				return err
			}
			return serve(ctx, a)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	lis, err := net.Listen("tcp", a.cfg.Bridge.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.cfg.Bridge.Addr, err)
	}

	srv := grpc.NewServer()
	codec.NewPresenterServer(a.ctrl, &a.log).Register(srv)

	errc := make(chan error, 2)
	go func() {
		a.log.Info().Str("addr", lis.Addr().String()).Msg("presenter bridge listening")
		errc <- srv.Serve(lis)
	}()

	var metricsSrv *http.Server
	if a.cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
		metricsSrv = &http.Server{
			Addr:              a.cfg.Metrics.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			a.log.Info().Str("addr", a.cfg.Metrics.Addr).Msg("metrics listening")
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		a.log.Info().Msg("shutting down")
	case err = <-errc:
		a.log.Error().Err(err).Msg("server stopped")
	}

	srv.GracefulStop()
	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if serr := metricsSrv.Shutdown(shutdownCtx); serr != nil {
			a.log.Warn().Err(serr).Msg("metrics shutdown")
		}
	}
	return err
}

// #endregion serve-cmd
