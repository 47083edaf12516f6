package backend

import (
	"context"

	"faturamento/internal/amqp"
	"faturamento/internal/cache"
	"faturamento/internal/core"
	"faturamento/internal/sheets"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Factory builds the optional collaborators of the services from configuration.
type Factory interface {
	// SummaryCache returns nil when caching is disabled.
	SummaryCache(ctx context.Context, config Config) (cache.Cache[core.MonthlySummary], CleanupFunc, error)
	// Events returns nil when AMQP is not configured.
	Events(config Config) (*amqp.Client, CleanupFunc, error)
	// Exporter always returns an exporter; without a spreadsheet it keeps rows in memory.
	Exporter(ctx context.Context, config Config) (sheets.SummaryExporter, error)
}

// CacheType selects where monthly summaries are cached.
type CacheType string

const (
	NoCache     CacheType = "none"
	MemoryCache CacheType = "memory"
	RedisCache  CacheType = "redis"
)

// String implements fmt.Stringer
func (ct CacheType) String() string {
	return string(ct)
}

// IsValid returns true if the cache type is valid
func (ct CacheType) IsValid() bool {
	switch ct {
	case NoCache, MemoryCache, RedisCache:
		return true
	default:
		return false
	}
}
