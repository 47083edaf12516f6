package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"faturamento/internal/backend"
	"faturamento/internal/cli"
	applog "faturamento/internal/log"
	"faturamento/internal/observability"
	"faturamento/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	boot := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"), applog.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(boot)
	logger := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat, applog.ComponentWorker)

	logger.Info("Starting faturamento-worker")

	store := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer store.Close()

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err.Error())
		os.Exit(1)
	}
	factory := backend.NewFactory(logger.Logger)

	summaries, closeCache, err := factory.SummaryCache(context.Background(), bcfg)
	if err != nil {
		logger.Error("Failed to initialize summary cache", applog.FieldError, err.Error())
		os.Exit(1)
	}
	defer closeCache()

	exporter, err := factory.Exporter(context.Background(), bcfg)
	if err != nil {
		logger.Error("Failed to initialize summary exporter", applog.FieldError, err.Error())
		os.Exit(1)
	}

	events, closeEvents, err := factory.Events(bcfg)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err.Error())
		os.Exit(1)
	}
	defer closeEvents()

	// Scheduled sweeps publish events that this worker consumes in turn.
	app := cli.NewApp(store, summaries, events, metrics)
	summaryWorker := worker.NewSummaryWorker(app.Summaries, exporter, worker.WithMetrics(metrics))

	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()
	scheduler, err := worker.NewScheduler(jobCtx, cfg.SweepSchedule, cfg.RefreshSchedule, app.Sweeper, summaryWorker)
	if err != nil {
		logger.Error("Failed to schedule jobs", applog.FieldError, err.Error())
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		cancelJobs()
		scheduler.Stop()
	})

	logger.Info("Refreshing recent summaries on startup")
	if err := summaryWorker.RefreshRecent(ctx); err != nil {
		logger.Error("Startup refresh failed", applog.FieldError, err.Error())
	}

	scheduler.Start()
	logger.Info("Jobs scheduled",
		"sweep_schedule", cfg.SweepSchedule,
		"refresh_schedule", cfg.RefreshSchedule)

	if events != nil {
		go func() {
			if err := events.ConsumeEvents(ctx, summaryWorker.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Event consumption failed", applog.FieldError, err.Error())
			}
		}()
	} else {
		logger.Info("AMQP disabled, relying on scheduled refreshes only")
	}

	metricsSrv := &http.Server{
		Addr:              ":" + cfg.WorkerPort,
		Handler:           observability.Handler(registry),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server error", applog.FieldError, err.Error())
		}
	}()

	cli.WaitForShutdown(ctx, done)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
	logger.Info("Worker shutdown complete")
}
