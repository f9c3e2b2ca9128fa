package bus

import (
	"context"
	"fmt"
	"time"

	"SigFuse/internal/domain/repository"
	"SigFuse/pkg/cache"
)

// CacheLocker implements the distributed Locker on top of the cache layer's
// set-if-absent-with-expiry primitive. With the Redis cache behind it, the
// lock is shared across pipeline instances; with the memory cache it is
// process-local (tests only).
type CacheLocker struct {
	cache  cache.Service
	prefix string
}

// NewCacheLocker creates a locker with a fixed key namespace.
func NewCacheLocker(svc cache.Service) *CacheLocker {
	return &CacheLocker{cache: svc, prefix: "lock"}
}

func (l *CacheLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := l.cache.TryLock(ctx, l.wrap(key), ttl)
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	return ok, nil
}

func (l *CacheLocker) Release(ctx context.Context, key string) error {
	return l.cache.Unlock(ctx, l.wrap(key))
}

func (l *CacheLocker) wrap(key string) string {
	return fmt.Sprintf("%s:%s", l.prefix, key)
}

var _ repository.Locker = (*CacheLocker)(nil)
