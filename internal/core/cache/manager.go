package cache

import (
	"context"
	"sync"
	"time"

	"school-meal-engine/internal/infrastructure/config"
	"school-meal-engine/internal/pkg/common"

	"go.uber.org/zap"
)

// Cache 以字串鍵存放序列化結果的快取
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

// Manager 記憶體快取，過期清理加上最少使用淘汰
type Manager struct {
	cfg   config.CacheConfig
	mu    sync.Mutex
	store map[string]cacheEntry
	stats cacheStats
	now   func() time.Time
	stop  chan struct{}
	once  sync.Once
}

type cacheEntry struct {
	value       []byte
	expiresAt   time.Time
	createdAt   time.Time
	lastAccess  time.Time
	accessCount int
}

type cacheStats struct {
	hits      int64
	misses    int64
	evictions int64
	errors    int64
}

// NewManager 創建記憶體快取並啟動清理協程
func NewManager(cfg config.CacheConfig) *Manager {
	m := &Manager{
		cfg:   cfg,
		store: make(map[string]cacheEntry),
		now:   time.Now,
		stop:  make(chan struct{}),
	}

	if cfg.CleanupInterval > 0 {
		go m.startCleanup()
	}

	common.LogInfo("快取管理員已初始化",
		zap.Int("max_size", cfg.MaxSize),
		zap.Duration("ttl", cfg.TTL),
		zap.Duration("cleanup_interval", cfg.CleanupInterval),
	)

	return m
}

// Get 取得快取值；未命中或已過期回傳 ErrCacheMiss
func (m *Manager) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.store[key]
	if !exists {
		m.stats.misses++
		common.LogCacheMiss("memory", key)
		return nil, common.ErrCacheMiss
	}

	now := m.now()
	if now.After(entry.expiresAt) {
		delete(m.store, key)
		m.stats.evictions++
		m.stats.misses++
		common.LogCacheMiss("memory", key)
		return nil, common.ErrCacheMiss
	}

	entry.lastAccess = now
	entry.accessCount++
	m.store[key] = entry
	m.stats.hits++
	common.LogCacheHit("memory", key)

	return append([]byte(nil), entry.value...), nil
}

// Set 設置快取值；容量已滿時先清理過期項目，再淘汰最少使用者
func (m *Manager) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.store[key]; !exists && len(m.store) >= m.cfg.MaxSize {
		m.cleanup()
		if len(m.store) >= m.cfg.MaxSize {
			m.evictLRU()
		}
		if len(m.store) >= m.cfg.MaxSize {
			m.stats.errors++
			common.LogWarn("快取已滿", zap.Int("size", len(m.store)))
			return common.ErrCacheFull
		}
	}

	now := m.now()
	m.store[key] = cacheEntry{
		value:      append([]byte(nil), value...),
		expiresAt:  now.Add(m.cfg.TTL),
		createdAt:  now,
		lastAccess: now,
	}
	return nil
}

func (m *Manager) startCleanup() {
	ticker := time.NewTicker(m.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.mu.Lock()
			m.cleanup()
			m.mu.Unlock()
		case <-m.stop:
			return
		}
	}
}

// cleanup 清理過期項目，呼叫端須持有鎖
func (m *Manager) cleanup() int {
	now := m.now()
	count := 0

	for key, entry := range m.store {
		if now.After(entry.expiresAt) {
			delete(m.store, key)
			count++
			m.stats.evictions++
		}
	}

	if count > 0 {
		common.LogDebug("Cleaned up expired cache entries",
			zap.Int("count", count),
			zap.Int64("total_evictions", m.stats.evictions),
			zap.Int("remaining_size", len(m.store)),
		)
	}
	return count
}

// evictLRU 淘汰存取次數最少、最久未使用的項目
func (m *Manager) evictLRU() {
	var oldestKey string
	var oldestAccess time.Time
	var lowestAccessCount int

	for key, entry := range m.store {
		if oldestKey == "" ||
			entry.accessCount < lowestAccessCount ||
			(entry.accessCount == lowestAccessCount && entry.lastAccess.Before(oldestAccess)) {
			oldestKey = key
			oldestAccess = entry.lastAccess
			lowestAccessCount = entry.accessCount
		}
	}

	if oldestKey != "" {
		delete(m.store, oldestKey)
		m.stats.evictions++
		common.LogDebug("快取已淘汰(LRU)", zap.String("key", oldestKey))
	}
}

// GetStats 快取統計
func (m *Manager) GetStats() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	ratio := 0.0
	if total := m.stats.hits + m.stats.misses; total > 0 {
		ratio = float64(m.stats.hits) / float64(total)
	}

	return map[string]interface{}{
		"size":      len(m.store),
		"max_size":  m.cfg.MaxSize,
		"hits":      m.stats.hits,
		"misses":    m.stats.misses,
		"evictions": m.stats.evictions,
		"errors":    m.stats.errors,
		"hit_ratio": ratio,
	}
}

// Close 停止清理協程並清空快取
func (m *Manager) Close() error {
	m.once.Do(func() { close(m.stop) })

	m.mu.Lock()
	defer m.mu.Unlock()

	m.store = make(map[string]cacheEntry)
	common.LogInfo("快取管理員已關閉",
		zap.Int64("hits", m.stats.hits),
		zap.Int64("misses", m.stats.misses),
		zap.Int64("evictions", m.stats.evictions),
	)
	return nil
}
