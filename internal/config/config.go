package config

import (
	"os"
	"time"

	"github.com/go-yaml/yaml"
	"github.com/pkg/errors"
)

type Config struct {
	Server  Server  `yaml:"server"`
	Cache   Cache   `yaml:"cache"`
	Storage Storage `yaml:"storage"`
}

type Server struct {
	Listen        string `yaml:"listen"`
	PostgresDsn   string `yaml:"postgresDsn"`
	MongoURI      string `yaml:"mongoURI"`
	MongoDatabase string `yaml:"mongoDatabase"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	RedisDB       int    `yaml:"redisDB"`
	EnableTrace   bool   `yaml:"enableTrace"`
	TraceEndpoint string `yaml:"traceEndpoint"`
}

type Cache struct {
	// Backend is one of redis, memcached or memory.
	Backend string `yaml:"backend"`
	// TTL is in seconds.
	TTL int `yaml:"ttl"`
	// RedisDBs maps a namespace to its redis database index.
	RedisDBs map[string]int `yaml:"redisDBs"`
	// MemcachedAddrs maps a namespace to its memcached server.
	MemcachedAddrs map[string]string `yaml:"memcachedAddrs"`
}

type Storage struct {
	// Store is mongo or memory.
	Store      string `yaml:"store"`
	PreviewDir string `yaml:"previewDir"`
	PreviewURL string `yaml:"previewURL"`
}

func (c Cache) DefaultTTL() time.Duration {
	return time.Duration(c.TTL) * time.Second
}

var defaultRedisDBs = map[string]int{
	"entities": 1,
	"search":   2,
	"session":  3,
	"checksum": 4,
}

func Load(path string) (Config, error) {

	file, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer file.Close()

	var config Config
	err = yaml.NewDecoder(file).Decode(&config)
	if err != nil {
		return Config{}, errors.Wrap(err, "decode config")
	}

	config.applyDefaults()

	if err := config.validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = ":8000"
	}
	if c.Server.MongoDatabase == "" {
		c.Server.MongoDatabase = "heritage"
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = "memory"
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = 3600
	}
	if c.Cache.RedisDBs == nil {
		c.Cache.RedisDBs = make(map[string]int)
	}
	for ns, db := range defaultRedisDBs {
		if _, ok := c.Cache.RedisDBs[ns]; !ok {
			c.Cache.RedisDBs[ns] = db
		}
	}
	if c.Storage.Store == "" {
		c.Storage.Store = "memory"
	}
	if c.Storage.PreviewDir == "" {
		c.Storage.PreviewDir = "./previews"
	}
	if c.Storage.PreviewURL == "" {
		c.Storage.PreviewURL = "/previews"
	}
}

func (c *Config) validate() error {
	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Server.RedisAddr == "" {
			return errors.New("cache backend redis requires server.redisAddr")
		}
		seen := make(map[int]string)
		for ns, db := range c.Cache.RedisDBs {
			if other, dup := seen[db]; dup {
				return errors.Errorf("cache namespaces %s and %s share redis db %d", ns, other, db)
			}
			seen[db] = ns
		}
	case "memcached":
		for ns := range defaultRedisDBs {
			if c.Cache.MemcachedAddrs[ns] == "" {
				return errors.Errorf("cache backend memcached requires an address for namespace %s", ns)
			}
		}
	default:
		return errors.Errorf("unknown cache backend %q", c.Cache.Backend)
	}

	switch c.Storage.Store {
	case "memory":
	case "mongo":
		if c.Server.MongoURI == "" {
			return errors.New("store mongo requires server.mongoURI")
		}
	default:
		return errors.Errorf("unknown store %q", c.Storage.Store)
	}

	return nil
}
