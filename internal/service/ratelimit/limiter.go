package ratelimit

import (
	"sync"
	"time"
)

type bucket struct {
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	last       time.Time
}

// Limiter is a keyed token bucket. Each source gets its own bucket created
// on first sight; idle buckets are evicted lazily during Allow.
type Limiter struct {
	mu       sync.Mutex
	m        map[string]*bucket
	lastScan time.Time
}

const idleEviction = 10 * time.Minute

func New() *Limiter {
	return &Limiter{m: make(map[string]*bucket), lastScan: time.Now()}
}

// Allow consumes one token for key if available.
func (l *Limiter) Allow(key string, capacity, refillPerSec float64) bool {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	l.evictIdle(now)

	b, ok := l.m[key]
	if !ok {
		b = &bucket{tokens: capacity, capacity: capacity, refillRate: refillPerSec, last: now}
		l.m[key] = b
	}
	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens += elapsed * b.refillRate
		if b.tokens > b.capacity {
			b.tokens = b.capacity
		}
		b.last = now
	}
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

func (l *Limiter) evictIdle(now time.Time) {
	if now.Sub(l.lastScan) < idleEviction {
		return
	}
	for k, b := range l.m {
		if now.Sub(b.last) > idleEviction {
			delete(l.m, k)
		}
	}
	l.lastScan = now
}
