package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// Namespace is one physically isolated cache partition.
type Namespace string

const (
	NamespaceEntities Namespace = "entities"
	NamespaceSearch   Namespace = "search"
	NamespaceSession  Namespace = "session"
	NamespaceChecksum Namespace = "checksum"
)

var Namespaces = []Namespace{NamespaceEntities, NamespaceSearch, NamespaceSession, NamespaceChecksum}

// ErrCacheMiss is returned by a Backend when a key is absent.
type ErrCacheMiss struct {
	Key string
}

func (e ErrCacheMiss) Error() string {
	return fmt.Sprintf("cache miss: %s", e.Key)
}

func IsCacheMiss(err error) bool {
	_, ok := err.(ErrCacheMiss)
	return ok
}

// Backend stores raw bytes for a single namespace.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// Cache is a namespace-scoped JSON cache. Backend failures are logged and
// reported as misses, so callers stay correct without a cache.
type Cache struct {
	namespace  Namespace
	backend    Backend
	defaultTTL time.Duration
}

func New(namespace Namespace, backend Backend, defaultTTL time.Duration) *Cache {
	return &Cache{namespace: namespace, backend: backend, defaultTTL: defaultTTL}
}

func (c *Cache) Namespace() Namespace {
	return c.namespace
}

// Get decodes the cached value for key into out and reports whether it was found.
func (c *Cache) Get(ctx context.Context, key string, out any) bool {
	if c == nil || c.backend == nil {
		return false
	}
	data, err := c.backend.Get(ctx, key)
	if err != nil {
		if !IsCacheMiss(err) {
			c.logError(ctx, "get", key, err)
		}
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		c.logError(ctx, "decode", key, err)
		return false
	}
	return true
}

// Set stores value under key. A zero ttl uses the cache default.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	if c == nil || c.backend == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		c.logError(ctx, "encode", key, err)
		return
	}
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	if err := c.backend.Set(ctx, key, data, ttl); err != nil {
		c.logError(ctx, "set", key, err)
	}
}

func (c *Cache) Del(ctx context.Context, key string) {
	if c == nil || c.backend == nil {
		return
	}
	if err := c.backend.Delete(ctx, key); err != nil && !IsCacheMiss(err) {
		c.logError(ctx, "delete", key, err)
	}
}

// Flush empties this namespace only.
func (c *Cache) Flush(ctx context.Context) {
	if c == nil || c.backend == nil {
		return
	}
	if err := c.backend.Clear(ctx); err != nil {
		c.logError(ctx, "flush", "*", err)
	}
}

func (c *Cache) logError(ctx context.Context, op, key string, err error) {
	slog.WarnContext(
		ctx, "cache operation failed, treating as miss",
		slog.String("namespace", string(c.namespace)),
		slog.String("op", op),
		slog.String("key", key),
		slog.String("error", err.Error()),
		slog.String("module", "cache"),
	)
}

// Caches bundles one Cache per namespace.
type Caches struct {
	Entities *Cache
	Search   *Cache
	Session  *Cache
	Checksum *Cache
}

func (c Caches) Get(ns Namespace) *Cache {
	switch ns {
	case NamespaceEntities:
		return c.Entities
	case NamespaceSearch:
		return c.Search
	case NamespaceSession:
		return c.Session
	case NamespaceChecksum:
		return c.Checksum
	}
	return nil
}
