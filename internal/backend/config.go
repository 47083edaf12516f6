package backend

import (
	"errors"
	"fmt"
	"time"

	"faturamento/internal/config"
	"faturamento/internal/sheets/google"
)

// redisKeyPrefix namespaces summary keys in a shared Redis.
const redisKeyPrefix = "faturamento:summary:"

// Config holds what the factory needs from the application config.
type Config struct {
	Cache     CacheType
	CacheSize int
	CacheTTL  time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// An empty AMQPURL disables events.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Sheets.SpreadsheetID empty selects the in-memory exporter.
	Sheets google.Settings
}

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}

	cacheType := CacheType(appConfig.CacheBackend)
	if !cacheType.IsValid() {
		return Config{}, fmt.Errorf("invalid cache backend in config: %s", appConfig.CacheBackend)
	}

	credentialsFile := appConfig.GoogleServiceAccountFile
	if credentialsFile == "" {
		credentialsFile = appConfig.GoogleApplicationCredentials
	}

	return Config{
		Cache:     cacheType,
		CacheSize: appConfig.SummaryCacheSize,
		CacheTTL:  appConfig.SummaryCacheTTL,

		RedisAddr:     appConfig.RedisAddr,
		RedisPassword: appConfig.RedisPassword,
		RedisDB:       appConfig.RedisDB,

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,

		Sheets: google.Settings{
			SpreadsheetID:   appConfig.GoogleSpreadsheetID,
			SheetName:       appConfig.GoogleSummarySheetName,
			CredentialsJSON: appConfig.GoogleServiceAccountJSON,
			CredentialsFile: credentialsFile,
		},
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Cache.IsValid() {
		return fmt.Errorf("invalid cache backend: %s", c.Cache)
	}

	switch c.Cache {
	case MemoryCache:
		if c.CacheSize < 1 {
			return errors.New("memory cache size must be at least 1")
		}
		if c.CacheTTL <= 0 {
			return errors.New("cache TTL must be positive")
		}
	case RedisCache:
		if c.RedisAddr == "" {
			return errors.New("redis address is required for redis cache")
		}
		if c.CacheTTL <= 0 {
			return errors.New("cache TTL must be positive")
		}
	}

	if c.AMQPURL != "" && (c.AMQPExchange == "" || c.AMQPQueue == "") {
		return errors.New("AMQP exchange and queue are required when AMQP is enabled")
	}
	return nil
}

// GetCacheTypes returns all valid cache types
func GetCacheTypes() []CacheType {
	return []CacheType{NoCache, MemoryCache, RedisCache}
}
