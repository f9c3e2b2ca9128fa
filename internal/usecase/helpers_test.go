package usecase

import (
	"time"

	"SigFuse/internal/domain/models"
	"SigFuse/pkg/bus"
	"SigFuse/pkg/cache"
	"SigFuse/pkg/config"
	"SigFuse/pkg/logger"
)

// nopMetrics satisfies the Metrics interface for tests.
type nopMetrics struct{}

func (nopMetrics) RecordEvent(string, string)    {}
func (nopMetrics) RecordError(string)            {}
func (nopMetrics) RecordScore(string, float64)   {}
func (nopMetrics) RecordLatency(string, float64) {}
func (nopMetrics) RecordGauge(string, float64)   {}

func testLogger() *logger.Logger {
	l, _ := logger.New(&logger.Config{Level: "error", Format: "console", Output: "stdout"})
	return l
}

func testConfig() *config.Config {
	return config.Default()
}

// newMemLocker backs the route lock with the in-memory cache, keeping the
// same set-if-absent semantics as the Redis lock.
func newMemLocker() *bus.CacheLocker {
	return bus.NewCacheLocker(cache.NewMemoryCache())
}

func rawEvent(source, exchange, symbol string) *models.RawEvent {
	return &models.RawEvent{
		Source:     source,
		Exchange:   exchange,
		Symbols:    []string{symbol},
		RawText:    symbol + " will be listed",
		EventType:  models.EventListing,
		DetectedAt: time.Now().UnixMilli(),
	}
}
