package cache

import (
	"context"
	"errors"
)

// ErrCacheMiss is returned by Get when the key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// Cache defines a generic cache interface
type Cache[T any] interface {
	// Get retrieves a value from the cache or returns ErrCacheMiss
	Get(ctx context.Context, key string) (T, error)

	// Set stores a value in the cache
	Set(ctx context.Context, key string, data T) error

	// Delete removes a key from the cache
	Delete(ctx context.Context, key string) error

	// Name identifies the backend in logs and metrics
	Name() string
}
