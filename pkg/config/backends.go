package config

import (
	"context"
	"time"

	"github.com/matzehuels/labelkit/pkg/cache"
	"github.com/matzehuels/labelkit/pkg/errors"
	"github.com/matzehuels/labelkit/pkg/templates"
)

// Cache backends.
const (
	CacheFile  = "file"
	CacheRedis = "redis"
	CacheNone  = "none"
)

// Template store backends.
const (
	TemplatesFile   = "file"
	TemplatesMongo  = "mongo"
	TemplatesMemory = "memory"
)

// CacheConfig selects and configures the render cache.
type CacheConfig struct {
	Backend string        `toml:"backend"`
	Dir     string        `toml:"dir,omitempty"`
	TTL     time.Duration `toml:"ttl"`
	Redis   RedisConfig   `toml:"redis"`
}

// RedisConfig configures the Redis cache backend.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password,omitempty"`
	DB       int    `toml:"db,omitempty"`
	Prefix   string `toml:"prefix"`
}

// TemplatesConfig selects and configures the template store.
type TemplatesConfig struct {
	Backend string      `toml:"backend"`
	Dir     string      `toml:"dir,omitempty"`
	Mongo   MongoConfig `toml:"mongo"`
}

// MongoConfig configures the MongoDB template store.
type MongoConfig struct {
	URI      string `toml:"uri"`
	Database string `toml:"database"`
}

// Open creates the configured cache, wrapped to report cache hooks.
func (c CacheConfig) Open(ctx context.Context) (cache.Cache, error) {
	var (
		inner cache.Cache
		err   error
	)
	switch c.Backend {
	case CacheNone:
		return cache.NewNullCache(), nil
	case CacheRedis:
		inner, err = cache.NewRedisCache(ctx, cache.RedisOptions{
			Addr:     c.Redis.Addr,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
			Prefix:   c.Redis.Prefix,
		})
	case CacheFile, "":
		dir := c.Dir
		if dir == "" {
			if dir, err = cache.DefaultDir(); err != nil {
				return nil, err
			}
		}
		inner, err = cache.NewFileCache(dir)
	default:
		return nil, errors.Validation("unknown cache backend %q", c.Backend)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "open %s cache", c.Backend)
	}
	return cache.NewInstrumented(inner, "render"), nil
}

// Open creates the configured template store.
func (c TemplatesConfig) Open(ctx context.Context) (templates.Store, error) {
	switch c.Backend {
	case TemplatesMemory:
		return templates.NewMemoryStore(), nil
	case TemplatesMongo:
		s, err := templates.NewMongoStore(ctx, templates.MongoOptions{URI: c.Mongo.URI, Database: c.Mongo.Database})
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "open template store")
		}
		return s, nil
	case TemplatesFile, "":
		s, err := templates.NewFileStore(c.Dir)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, errors.Validation("unknown templates backend %q", c.Backend)
	}
}
