package server

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/chaos-io/cutout/config"
	"github.com/chaos-io/cutout/util"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Cache 结果缓存，未命中时返回 (nil, nil)
type Cache interface {
	Get(ctx context.Context, key string) (*Result, error)
	Set(ctx context.Context, key string, result *Result) error
}

// NopCache 不缓存，Redis 未启用或不可用时使用
type NopCache struct{}

func (NopCache) Get(context.Context, string) (*Result, error) { return nil, nil }

func (NopCache) Set(context.Context, string, *Result) error { return nil }

const cacheKeyPrefix = "cutout:"

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(cfg *config.RedisConfig) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &RedisCache{
		client: client,
		ttl:    cfg.TTL,
	}
}

func (s *RedisCache) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Get 从缓存获取抠图结果
func (s *RedisCache) Get(ctx context.Context, key string) (*Result, error) {
	data, err := s.client.Get(ctx, cacheKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // 缓存未命中
		}
		return nil, err
	}

	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		util.Logger.Error("failed to unmarshal cutout result",
			zap.String("key", key), zap.Error(err))
		return nil, err
	}

	return &result, nil
}

// Set 写入缓存
func (s *RedisCache) Set(ctx context.Context, key string, result *Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}

	return s.client.Set(ctx, cacheKeyPrefix+key, data, s.ttl).Err()
}

func (s *RedisCache) Close() error {
	return s.client.Close()
}
