package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

const minEntries = 16

// Memory is an in-process LRU cache whose entries expire after a TTL.
type Memory[T any] struct {
	lru *lru.LRU[string, T]
}

var _ Cache[int] = (*Memory[int])(nil)

func NewMemory[T any](maxEntries int, ttl time.Duration) *Memory[T] {
	if maxEntries < minEntries {
		maxEntries = minEntries
	}
	return &Memory[T]{lru: lru.NewLRU[string, T](maxEntries, nil, ttl)}
}

func (m *Memory[T]) Get(_ context.Context, key string) (T, error) {
	v, ok := m.lru.Get(key)
	if !ok {
		var zero T
		return zero, ErrCacheMiss
	}
	return v, nil
}

func (m *Memory[T]) Set(_ context.Context, key string, data T) error {
	m.lru.Add(key, data)
	return nil
}

func (m *Memory[T]) Delete(_ context.Context, key string) error {
	m.lru.Remove(key)
	return nil
}

// Len returns the number of live entries.
func (m *Memory[T]) Len() int {
	return m.lru.Len()
}

func (m *Memory[T]) Name() string { return "memory" }
