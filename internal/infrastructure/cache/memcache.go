package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/zeebo/xxh3"
)

const memcacheMaxKey = 250

// MemcacheBackend keeps one namespace on its own memcached server.
type MemcacheBackend struct {
	client *memcache.Client
}

func NewMemcacheBackend(client *memcache.Client) *MemcacheBackend {
	return &MemcacheBackend{client: client}
}

// memcacheKey hashes keys memcached would reject (too long or containing whitespace).
func memcacheKey(key string) string {
	if len(key) <= memcacheMaxKey && !hasSpaceOrControl(key) {
		return key
	}
	return fmt.Sprintf("h:%016x", xxh3.HashString(key))
}

func hasSpaceOrControl(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] <= ' ' || s[i] == 0x7f {
			return true
		}
	}
	return false
}

func (m *MemcacheBackend) Get(ctx context.Context, key string) ([]byte, error) {
	item, err := m.client.Get(memcacheKey(key))
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return nil, ErrCacheMiss{Key: key}
		}
		return nil, err
	}
	return item.Value, nil
}

func (m *MemcacheBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return m.client.Set(&memcache.Item{
		Key:        memcacheKey(key),
		Value:      value,
		Expiration: int32(ttl / time.Second),
	})
}

func (m *MemcacheBackend) Delete(ctx context.Context, key string) error {
	err := m.client.Delete(memcacheKey(key))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil
	}
	return err
}

func (m *MemcacheBackend) Clear(ctx context.Context) error {
	return m.client.FlushAll()
}
