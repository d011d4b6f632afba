package serve

import (
	"context"
	"fmt"
	"log/slog"
	netHttp "net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/resonatehq/syncevents/cmd/config"
	"github.com/resonatehq/syncevents/cmd/util"
	"github.com/resonatehq/syncevents/internal/app/auth"
	"github.com/resonatehq/syncevents/internal/app/subsystems/api/http"
	"github.com/resonatehq/syncevents/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

func NewCmd() *cobra.Command {
	var (
		cfg = &config.ServeConfig{}
		vip = viper.New()
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the records server",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return config.Load(cmd, vip, cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return Serve(ctx, cfg)
		},
	}

	cobra.CheckErr(config.Bind(cmd, vip, cfg))
	cmd.Flags().SortFlags = false

	return cmd
}

// Serve runs the records api until ctx is done or a server fails.
func Serve(ctx context.Context, cfg *config.ServeConfig) error {
	slog.Info("starting syncevents", "version", version.Full())

	reg := prometheus.NewRegistry()

	// guards both the api and the metrics server
	authenticator, err := auth.New(&cfg.Auth)
	if err != nil {
		return err
	}

	rt, err := util.Start(&cfg.Config, reg)
	if err != nil {
		return err
	}

	// plugins
	sinks, err := cfg.Plugins.Instantiate(rt.Metrics)
	if err != nil {
		_ = rt.Stop()
		return err
	}

	errors := make(chan error, len(sinks)+1)
	for _, sink := range sinks {
		if err := sink.Plugin.Start(errors); err != nil {
			slog.Error("failed to start plugin", "plugin", sink.Plugin, "error", err)
			_ = rt.Stop()
			return err
		}
		rt.Observer.AddSink(sink.Plugin, sink.Addr)
	}

	// api
	api := http.New(rt.Dispatcher, rt.Metrics, &cfg.API.Http, authenticator)

	// metrics server
	mux := netHttp.NewServeMux()
	mux.Handle("/metrics", auth.Handler(authenticator, promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	metricsServer := &netHttp.Server{
		Addr:    fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler: mux,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		api.Start(errors)
		return nil
	})

	g.Go(func() error {
		slog.Info("starting metrics server", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && err != netHttp.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		// halt until we get a shutdown signal or an error
		// occurs, whichever happens first
		var err error
		select {
		case <-gctx.Done():
			slog.Info("shutdown signal received, shutting down")
		case err = <-errors:
			slog.Error("error received, shutting down", "error", err)
		}

		// stop accepting requests before draining the operations in flight
		if err := api.Stop(); err != nil {
			slog.Warn("error stopping api", "error", err)
		}
		if err := metricsServer.Close(); err != nil {
			slog.Warn("error stopping metrics server", "error", err)
		}

		return err
	})

	err = g.Wait()

	if stopErr := rt.Stop(); stopErr != nil && err == nil {
		err = stopErr
	}
	for _, sink := range sinks {
		if err := sink.Plugin.Stop(); err != nil {
			slog.Warn("failed to stop plugin", "plugin", sink.Plugin, "error", err)
		}
	}

	return err
}
