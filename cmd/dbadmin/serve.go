package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/soochol/dbadmin/internal/api"
	"github.com/soochol/dbadmin/internal/config"
	"github.com/soochol/dbadmin/internal/dbadmin"
	"github.com/soochol/dbadmin/internal/eventbus"
	"github.com/soochol/dbadmin/internal/logging"
	"github.com/soochol/dbadmin/internal/metrics"
	"github.com/soochol/dbadmin/internal/navigation"
	"github.com/soochol/dbadmin/internal/services"
	"github.com/soochol/dbadmin/internal/tracking"
)

func serveCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the admin HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			if port > 0 {
				cfg.Server.Port = port
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "override server.port")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	_, logCloser, err := logging.Setup(cfg.Logging)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	m := metrics.New(nil)
	history := navigation.NewHistory(dbadmin.ListPath, 0)
	tracker := tracking.Multi{tracking.LogTracker{}, tracking.NewStoreTracker(b.tracking)}

	mgr := services.NewRegistryManager(m.Instrument(b.access), history, tracker, cfg.Engines)
	mgr.SetRetryPolicy(cfg.Remote.Retry)

	bus := eventbus.New()
	bus.Subscribe(m.Observe)
	mgr.SetEventBus(bus)

	validator, err := services.NewDraftValidator(cfg.Engines)
	if err != nil {
		return fmt.Errorf("engine rules: %w", err)
	}
	mgr.SetValidator(validator)

	var limiter *services.MutationLimiter
	if cfg.Registry.SerializePerDatabase {
		limiter = services.NewMutationLimiter(dbadmin.MutationLimits{
			GlobalMax:   cfg.Registry.MaxInFlight,
			PerDatabase: 1,
		})
		mgr.SetMutationLimiter(limiter)
	}

	sched, err := services.NewRefreshScheduler(mgr, cfg.Scheduler)
	if err != nil {
		return err
	}

	srv := api.NewServer(mgr, history, cfg.Engines)
	srv.SetEventBus(bus)
	srv.SetTrackingRepository(b.tracking)
	srv.SetMetricsHandler(m.Handler())
	srv.SetScheduler(sched)
	srv.SetSyncConcurrency(cfg.Scheduler.SyncConcurrency)
	if limiter != nil {
		srv.SetMutationLimiter(limiter)
	}
	if b.embedded != nil {
		srv.SetDataAccess(b.embedded)
	}
	if cfg.Server.APIKeyHash != "" {
		srv.SetAPIKeyHash(cfg.Server.APIKeyHash)
	}

	if err := mgr.FetchAll(ctx); err != nil {
		slog.Warn("initial fetch failed", "err", err)
	}
	sched.Start()
	defer sched.Stop()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpSrv := &http.Server{Addr: addr, Handler: srv.Handler()}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting dbadmin server", "addr", addr, "embedded", b.embedded != nil)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
