// proxypulse ingests reverse-proxy access logs, derives per-agent
// metrics on a schedule, evaluates alert rules against them, and keeps
// time-windowed snapshots under a retention policy.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/proxypulse/proxypulse/internal/alerting"
	"github.com/proxypulse/proxypulse/internal/api"
	"github.com/proxypulse/proxypulse/internal/archive"
	"github.com/proxypulse/proxypulse/internal/conf"
	"github.com/proxypulse/proxypulse/internal/datastore"
	"github.com/proxypulse/proxypulse/internal/datastore/repository"
	"github.com/proxypulse/proxypulse/internal/logger"
	"github.com/proxypulse/proxypulse/internal/notify"
	"github.com/proxypulse/proxypulse/internal/scheduler"
	"github.com/proxypulse/proxypulse/internal/service"
	"github.com/proxypulse/proxypulse/internal/source"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:           "proxypulse",
		Short:         "Access-log metrics and alerting pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to config file")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler and control surface",
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := conf.Load(configFile)
			if err != nil {
				return err
			}
			return run(cmd.Context(), settings)
		},
	}
	root.AddCommand(serve)

	sweep := &cobra.Command{
		Use:   "sweep",
		Short: "Run one retention sweep and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := conf.Load(configFile)
			if err != nil {
				return err
			}
			return runSweep(cmd.Context(), settings)
		},
	}
	root.AddCommand(sweep)

	return root
}

func run(ctx context.Context, settings *conf.Settings) error {
	log := logger.NewSlogLogger(os.Stderr, logger.ParseLevel(settings.LogLevel), nil)

	manager, err := datastore.NewSQLiteManager(datastore.Config{DataDir: settings.DataDir})
	if err != nil {
		return err
	}
	defer func() { _ = manager.Close() }()
	if err := manager.Initialize(); err != nil {
		return err
	}

	snapRepo := repository.NewSnapshotRepository(manager.DB())
	notifRepo := repository.NewNotificationRepository(manager.DB())
	ruleRepo := repository.NewAlertRuleRepository(manager.DB())
	configRepo := repository.NewConfigRepository(manager.DB())

	var transport notify.Transport
	if len(settings.NotifyURLs) > 0 {
		transport, err = notify.NewShoutrrrTransport(settings.NotifyURLs, log)
		if err != nil {
			return err
		}
	} else {
		log.Warn("no notification URLs configured, alerts will only be logged")
		transport = notify.NewLogTransport(log)
	}

	engine := alerting.NewEngine(ruleRepo, notifRepo, transport, settings.DeliveryTimeout.Std(), log)
	policy := archive.NewPolicy(snapRepo, notifRepo, configRepo, log)
	coord := service.NewCoordinator(snapRepo, engine, policy, log)
	if err := coord.Initialize(ctx); err != nil {
		return err
	}
	defer coord.Shutdown()

	src, err := source.NewSQLiteSource(settings.SourceDSN)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	sched := scheduler.New(src, coord, scheduler.Options{
		Tick:         settings.TickInterval.Std(),
		FetchTimeout: settings.FetchTimeout.Std(),
		Concurrency:  settings.CycleConcurrency,
	}, log)

	// Seed due bookkeeping from persisted windows so a restart does not
	// immediately re-evaluate everything.
	if latest, err := snapRepo.LatestWindowEnd(ctx); err != nil {
		log.Warn("failed to warm scheduler state", logger.Error(err))
	} else {
		sched.WarmLastEvaluated(latest)
	}

	policy.Start()
	sched.Start()
	defer sched.Stop()

	controller := api.New(sched, coord, policy, notifRepo, ruleRepo, configRepo, api.Options{
		Token:          settings.APIToken,
		TriggerEnabled: settings.TriggerEnabled,
	}, log)

	serverErr := make(chan error, 1)
	go func() {
		if err := controller.Start(settings.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()
	log.Info("control surface listening", logger.String("addr", settings.Listen))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("control surface failed: %w", err)
	case sig := <-sigCh:
		log.Info("shutting down", logger.String("signal", sig.String()))
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return controller.Shutdown(shutdownCtx)
}

func runSweep(ctx context.Context, settings *conf.Settings) error {
	log := logger.NewSlogLogger(os.Stderr, logger.ParseLevel(settings.LogLevel), nil)

	manager, err := datastore.NewSQLiteManager(datastore.Config{DataDir: settings.DataDir})
	if err != nil {
		return err
	}
	defer func() { _ = manager.Close() }()
	if err := manager.Initialize(); err != nil {
		return err
	}

	policy := archive.NewPolicy(
		repository.NewSnapshotRepository(manager.DB()),
		repository.NewNotificationRepository(manager.DB()),
		repository.NewConfigRepository(manager.DB()),
		log,
	)
	deleted, err := policy.Sweep(ctx)
	if err != nil {
		return err
	}
	log.Info("sweep finished", logger.Int64("snapshots_deleted", deleted))
	return nil
}
