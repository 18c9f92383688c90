package providers

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"gorm.io/gorm"

	"github.com/totegamma/heritage-repo/internal/config"
	"github.com/totegamma/heritage-repo/internal/infrastructure/cache"
	"github.com/totegamma/heritage-repo/internal/infrastructure/database"
	"github.com/totegamma/heritage-repo/internal/infrastructure/store"
	"github.com/totegamma/heritage-repo/internal/usecase"
)

// NewDatabase opens a Postgres connection using the configured DSN.
func NewDatabase(conf config.Server) (*gorm.DB, error) {
	return database.NewPostgres(conf.PostgresDsn)
}

// MigrateDatabase applies migrations for the application models.
func MigrateDatabase(db *gorm.DB) error {
	return database.MigratePostgres(db)
}

// NewRedis creates the redis client used for pub/sub signals.
func NewRedis(conf config.Server) *redis.Client {
	return database.NewRedis(conf.RedisAddr, conf.RedisPassword, conf.RedisDB)
}

// NewDocumentStore opens the configured document store. The returned close
// function is never nil.
func NewDocumentStore(ctx context.Context, conf config.Config) (usecase.DocumentStore, func(), error) {
	switch conf.Storage.Store {
	case "mongo":
		client, db, err := database.NewMongo(ctx, conf.Server.MongoURI, conf.Server.MongoDatabase)
		if err != nil {
			return nil, func() {}, errors.Wrap(err, "connect mongo")
		}
		s := store.NewMongoStore(db)
		if err := s.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, func() {}, err
		}
		return s, disconnect(client), nil
	default:
		return store.NewMemoryStore(), func() {}, nil
	}
}

func disconnect(client *mongo.Client) func() {
	return func() {
		_ = client.Disconnect(context.Background())
	}
}

// NewCaches builds one physically separate backend per namespace.
func NewCaches(conf config.Config) (cache.Caches, func(), error) {
	ttl := conf.Cache.DefaultTTL()
	var closers []func()
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	backend := func(ns cache.Namespace) (cache.Backend, error) {
		switch conf.Cache.Backend {
		case "redis":
			client := database.NewRedis(conf.Server.RedisAddr, conf.Server.RedisPassword, conf.Cache.RedisDBs[string(ns)])
			closers = append(closers, func() { _ = client.Close() })
			return cache.NewRedisBackend(client), nil
		case "memcached":
			addr := conf.Cache.MemcachedAddrs[string(ns)]
			if addr == "" {
				return nil, errors.Errorf("no memcached server for namespace %s", ns)
			}
			return cache.NewMemcacheBackend(database.NewMemcached(addr)), nil
		default:
			return cache.NewMemoryBackend(ttl, 2*ttl), nil
		}
	}

	built := make(map[cache.Namespace]*cache.Cache, len(cache.Namespaces))
	for _, ns := range cache.Namespaces {
		b, err := backend(ns)
		if err != nil {
			closeAll()
			return cache.Caches{}, func() {}, err
		}
		built[ns] = cache.New(ns, b, ttl)
	}

	return cache.Caches{
		Entities: built[cache.NamespaceEntities],
		Search:   built[cache.NamespaceSearch],
		Session:  built[cache.NamespaceSession],
		Checksum: built[cache.NamespaceChecksum],
	}, closeAll, nil
}
