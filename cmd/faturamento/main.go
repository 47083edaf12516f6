package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"faturamento/internal/backend"
	"faturamento/internal/cli"
	apphttp "faturamento/internal/http"
	applog "faturamento/internal/log"
	"faturamento/internal/observability"
)

func main() {
	cli.LoadEnvFile()

	boot := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"), applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(boot)
	logger := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat, applog.ComponentApp)

	store := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer store.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
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

	// Events are best effort: the ledger stays correct without them.
	events, closeEvents, err := factory.Events(bcfg)
	if err != nil {
		logger.Warn("Failed to initialize AMQP client, continuing without events", applog.FieldError, err.Error())
	} else {
		defer closeEvents()
	}

	app := cli.NewApp(store, summaries, events, metrics)
	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Services{
		Clients:   app.Clients,
		Invoices:  app.Invoices,
		Sweeper:   app.Sweeper,
		Summaries: app.Summaries,
		Dashboard: app.Dashboard,
	}, apphttp.Options{
		RateLimitRPM: cfg.RateLimitRPM,
		Metrics:      metrics,
		Gatherer:     registry,
		Logger:       logger,
		Ready:        store.Ping,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err.Error())
		}
	})

	go recordDBStats(ctx, store.DB().Stats, metrics)

	logger.Info("Starting faturamento server",
		"port", cfg.Port,
		"cache", bcfg.Cache,
		"events", events != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err.Error(), "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}

// recordDBStats samples the connection pool until ctx is cancelled.
func recordDBStats(ctx context.Context, stats func() sql.DBStats, metrics *observability.Metrics) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.RecordDBStats(stats())
		}
	}
}
