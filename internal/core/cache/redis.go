package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"school-meal-engine/internal/infrastructure/config"
	"school-meal-engine/internal/pkg/common"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const keyPrefix = "school-meal:"

// RedisCache 以 Redis 存放快取，多實例共用
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient 建立 Redis 連線並測試
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewRedisCache 創建 Redis 快取
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// Get 取得快取；redis.Nil 轉為 ErrCacheMiss
func (s *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, Key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			common.LogCacheMiss("redis", key)
			return nil, common.ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get cache: %w", err)
	}
	common.LogCacheHit("redis", key)
	return data, nil
}

// Set 設置快取
func (s *RedisCache) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, Key(key), value, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}
	return nil
}

// Close Redis 連線由建立者關閉
func (s *RedisCache) Close() error {
	return nil
}

// Key 加上應用前綴的快取鍵
func Key(key string) string {
	return keyPrefix + key
}

// New 依設定選擇快取後端；停用時回傳 nil
func New(cfg config.CacheConfig, client *redis.Client) (Cache, error) {
	if !cfg.Enabled {
		common.LogInfo("Cache disabled")
		return nil, nil
	}

	switch cfg.Backend {
	case "redis":
		if client == nil {
			return nil, fmt.Errorf("redis cache backend requires a redis client")
		}
		common.LogInfo("Using redis cache", zap.Duration("ttl", cfg.TTL))
		return NewRedisCache(client, cfg.TTL), nil
	case "memory", "":
		return NewManager(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported cache backend %q", cfg.Backend)
	}
}
