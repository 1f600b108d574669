package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache is a MembershipCache backed by Redis, so the recently-traded
// decay survives restarts and is shared across instances.
type RedisCache struct {
	cli    *redis.Client
	prefix string
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix" default:"marketpulse:"`
}

func NewRedisCache(cfg RedisConfig) *RedisCache {
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	return &RedisCache{cli: rdb, prefix: cfg.Prefix}
}

func (r *RedisCache) Add(key string, ttl time.Duration) error {
	return r.cli.Set(context.Background(), r.prefix+key, 1, ttl).Err()
}

func (r *RedisCache) Contains(key string) (bool, error) {
	n, err := r.cli.Exists(context.Background(), r.prefix+key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *RedisCache) Remove(key string) error {
	return r.cli.Del(context.Background(), r.prefix+key).Err()
}

func (r *RedisCache) Close() error { return r.cli.Close() }

var _ MembershipCache = (*RedisCache)(nil)
