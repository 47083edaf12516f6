package backend

import (
	"context"
	"fmt"
	"log/slog"

	"faturamento/internal/amqp"
	"faturamento/internal/cache"
	"faturamento/internal/core"
	"faturamento/internal/sheets"
	"faturamento/internal/sheets/google"
	"faturamento/internal/sheets/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

func noCleanup() error { return nil }

// SummaryCache implements Factory.SummaryCache
func (f *DefaultFactory) SummaryCache(ctx context.Context, config Config) (cache.Cache[core.MonthlySummary], CleanupFunc, error) {
	if err := config.Validate(); err != nil {
		return nil, noCleanup, err
	}

	switch config.Cache {
	case NoCache:
		f.logger.Info("Summary cache disabled")
		return nil, noCleanup, nil
	case MemoryCache:
		f.logger.Info("Initialized memory summary cache",
			"size", config.CacheSize,
			"ttl", config.CacheTTL)
		return cache.NewMemory[core.MonthlySummary](config.CacheSize, config.CacheTTL), noCleanup, nil
	case RedisCache:
		client, err := cache.NewRedisClient(ctx, config.RedisAddr, config.RedisPassword, config.RedisDB)
		if err != nil {
			return nil, noCleanup, fmt.Errorf("failed to initialize redis cache: %w", err)
		}
		f.logger.Info("Initialized redis summary cache",
			"addr", config.RedisAddr,
			"db", config.RedisDB,
			"ttl", config.CacheTTL)
		return cache.NewRedis[core.MonthlySummary](client, redisKeyPrefix, config.CacheTTL), client.Close, nil
	default:
		return nil, noCleanup, fmt.Errorf("unsupported cache backend: %s", config.Cache)
	}
}

// Events implements Factory.Events
func (f *DefaultFactory) Events(config Config) (*amqp.Client, CleanupFunc, error) {
	if config.AMQPURL == "" {
		f.logger.Info("AMQP disabled, billing events will not be published")
		return nil, noCleanup, nil
	}

	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		return nil, noCleanup, fmt.Errorf("failed to initialize AMQP client: %w", err)
	}
	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return client, client.Close, nil
}

// Exporter implements Factory.Exporter
func (f *DefaultFactory) Exporter(ctx context.Context, config Config) (sheets.SummaryExporter, error) {
	if config.Sheets.SpreadsheetID == "" {
		f.logger.Info("Google Sheets export disabled, keeping summaries in memory")
		return memory.New(), nil
	}

	exporter, err := google.New(ctx, config.Sheets)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets exporter: %w", err)
	}
	f.logger.Info("Initialized Google Sheets exporter", "spreadsheet_id", config.Sheets.SpreadsheetID)
	return exporter, nil
}
