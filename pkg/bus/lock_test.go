package bus

import (
	"context"
	"testing"
	"time"

	"SigFuse/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheLockerMutualExclusion(t *testing.T) {
	l := NewCacheLocker(cache.NewMemoryCache())
	ctx := context.Background()

	ok, err := l.Acquire(ctx, "route:cex_spot:SOL", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Acquire(ctx, "route:cex_spot:SOL", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// A different key is independent.
	ok, err = l.Acquire(ctx, "route:hl_perp:SOL", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCacheLockerReleaseFreesKey(t *testing.T) {
	l := NewCacheLocker(cache.NewMemoryCache())
	ctx := context.Background()

	ok, _ := l.Acquire(ctx, "k", time.Minute)
	require.True(t, ok)
	require.NoError(t, l.Release(ctx, "k"))

	ok, err := l.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCacheLockerTTLExpiry(t *testing.T) {
	l := NewCacheLocker(cache.NewMemoryCache())
	ctx := context.Background()

	ok, _ := l.Acquire(ctx, "k", 20*time.Millisecond)
	require.True(t, ok)

	assert.Eventually(t, func() bool {
		ok, err := l.Acquire(ctx, "k", time.Minute)
		return err == nil && ok
	}, time.Second, 10*time.Millisecond)
}
