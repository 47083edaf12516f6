// Package cli provides common CLI initialization utilities.
// It consolidates the start-up steps shared by cmd/faturamento,
// cmd/faturamento-worker and cmd/faturamentoctl.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"faturamento/internal/amqp"
	"faturamento/internal/cache"
	"faturamento/internal/config"
	"faturamento/internal/core"
	applog "faturamento/internal/log"
	"faturamento/internal/observability"
	"faturamento/internal/services"
	"faturamento/internal/storage"
)

// SetupLogger builds the process logger from the configured level and format
// and sets it as the default logger.
func SetupLogger(level, format, component string) *applog.Logger {
	cfg := applog.DefaultConfig()
	cfg.Level = applog.ParseLevel(level)
	cfg.Format = format
	cfg.Component = component
	logger := applog.New(cfg)
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *applog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err.Error())
		os.Exit(1)
	}
	return cfg
}

// InitSQLite initializes a SQLite repository with the given path.
// Returns the repository or exits the process on failure.
func InitSQLite(logger *applog.Logger, dbPath string) *storage.SQLiteRepository {
	sqliteRepo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", applog.FieldError, err.Error(), "path", dbPath)
		os.Exit(1)
	}
	return sqliteRepo
}

// App groups the domain services built over one store.
type App struct {
	Clients   *services.ClientService
	Invoices  *services.InvoiceService
	Sweeper   *services.Sweeper
	Summaries *services.SummaryService
	Dashboard *services.DashboardService
}

// NewApp wires the services. Nil events, summaries cache and metrics are allowed.
func NewApp(store storage.Store, summaries cache.Cache[core.MonthlySummary], events *amqp.Client, metrics *observability.Metrics) *App {
	opts := []services.Option{services.WithMetrics(metrics)}
	if events != nil {
		opts = append(opts, services.WithPublisher(events))
	}

	engine := services.NewRecurrenceEngine(store, opts...)
	return &App{
		Clients:   services.NewClientService(store, opts...),
		Invoices:  services.NewInvoiceService(store, engine, opts...),
		Sweeper:   services.NewSweeper(store, opts...),
		Summaries: services.NewSummaryService(store, summaries, opts...),
		Dashboard: services.NewDashboardService(store, opts...),
	}
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. After
// the signal, cleanup runs with a context bounded by timeout and done is
// closed once it returns.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}

		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
