package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryCache implements Service with an in-process lock table. Used by
// tests and single-instance deployments without Redis.
type MemoryCache struct {
	locks         map[string]time.Time // key -> expiry
	mutex         sync.Mutex
	cleanupTicker *time.Ticker
}

// NewMemoryCache creates an in-memory lock table.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{
		CleanupInterval: 5 * time.Minute,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	mc := &MemoryCache{
		locks:         make(map[string]time.Time),
		cleanupTicker: time.NewTicker(cfg.CleanupInterval),
	}

	go mc.cleanupExpired()
	return mc
}

func (mc *MemoryCache) TryLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	if expiry, ok := mc.locks[key]; ok && time.Now().Before(expiry) {
		return false, nil
	}

	mc.locks[key] = time.Now().Add(ttl)
	return true, nil
}

func (mc *MemoryCache) Unlock(_ context.Context, key string) error {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	delete(mc.locks, key)
	return nil
}

func (mc *MemoryCache) cleanupExpired() {
	for range mc.cleanupTicker.C {
		mc.mutex.Lock()
		now := time.Now()
		for key, expiry := range mc.locks {
			if now.After(expiry) {
				delete(mc.locks, key)
			}
		}
		mc.mutex.Unlock()
	}
}

// Close stops the cleanup ticker.
func (mc *MemoryCache) Close() error {
	if mc.cleanupTicker != nil {
		mc.cleanupTicker.Stop()
	}
	return nil
}

var _ Service = (*MemoryCache)(nil)
