package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryBackend is an in-process namespace backed by go-cache.
type MemoryBackend struct {
	cache *gocache.Cache
}

func NewMemoryBackend(defaultTTL, cleanupInterval time.Duration) *MemoryBackend {
	return &MemoryBackend{cache: gocache.New(defaultTTL, cleanupInterval)}
}

func (m *MemoryBackend) Get(ctx context.Context, key string) ([]byte, error) {
	x, found := m.cache.Get(key)
	if !found {
		return nil, ErrCacheMiss{Key: key}
	}
	return x.([]byte), nil
}

func (m *MemoryBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)
	m.cache.Set(key, stored, ttl)
	return nil
}

func (m *MemoryBackend) Delete(ctx context.Context, key string) error {
	m.cache.Delete(key)
	return nil
}

func (m *MemoryBackend) Clear(ctx context.Context) error {
	m.cache.Flush()
	return nil
}
