package assignment

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// Gate 多實例部署時，確保同一次觸發只有一個實例執行
type Gate interface {
	Acquire(ctx context.Context, key string) (bool, error)
}

// RedisLeaderGate 以 SETNX 取得鎖，鎖在 TTL 到期後自然釋放
type RedisLeaderGate struct {
	client *redis.Client
	ttl    time.Duration
	owner  string
}

// NewRedisLeaderGate 創建 Redis 鎖
func NewRedisLeaderGate(client *redis.Client, ttl time.Duration) *RedisLeaderGate {
	host, _ := os.Hostname()
	return &RedisLeaderGate{
		client: client,
		ttl:    ttl,
		owner:  fmt.Sprintf("%s:%s", host, uuid.NewString()),
	}
}

// Acquire 取得鎖時回傳 true；其他實例已持有時回傳 false
func (g *RedisLeaderGate) Acquire(ctx context.Context, key string) (bool, error) {
	ok, err := g.client.SetNX(ctx, LockKey(key), g.owner, g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire scheduler lock: %w", err)
	}
	return ok, nil
}

// LockKey 排程鎖的 Redis 鍵
func LockKey(key string) string {
	return "school-meal:lock:" + key
}
