package logger

import (
	"context"
	"sync"
	"time"

	"SigFuse/pkg/util"
)

// Publisher is the slice of the bus the collector needs to ship alerts.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload interface{}) error
}

type CollectionConfig struct {
	TimeInterval   time.Duration // flush interval
	CountThreshold int           // max unique entries before an early flush
	Topic          string        // alert topic
	Publisher      Publisher
}

// AggregatedLogEntry is one deduplicated error-log line on the alert topic.
type AggregatedLogEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// LogCollector deduplicates repeated error logs by call site and flushes the
// aggregate to the alerting topic, keeping per-event noise off the
// notification path. Fields are kept from the first occurrence only; a
// repeat bumps the count.
type LogCollector struct {
	config  *CollectionConfig
	mu      sync.Mutex
	entries map[string]*AggregatedLogEntry
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

func NewLogCollector(config *CollectionConfig) *LogCollector {
	c := &LogCollector{
		config:  config,
		entries: make(map[string]*AggregatedLogEntry),
		stopCh:  make(chan struct{}),
	}
	c.wg.Add(1)
	go c.flushLoop()
	return c
}

// AddLog folds one log line into the aggregate. Dedup key is level, message
// and caller; variable field values do not fan out into distinct entries.
func (c *LogCollector) AddLog(level, message string, fields map[string]interface{}, caller string) {
	key := util.HashFields(level, message, caller)
	now := time.Now()

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		e.Count++
		e.LastSeen = now
		c.mu.Unlock()
		return
	}
	c.entries[key] = &AggregatedLogEntry{
		Level:     level,
		Message:   message,
		Fields:    fields,
		Caller:    caller,
		Count:     1,
		FirstSeen: now,
		LastSeen:  now,
	}
	full := len(c.entries) >= c.config.CountThreshold
	c.mu.Unlock()

	if full {
		c.flush()
	}
}

func (c *LogCollector) flushLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.TimeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.flush()
		case <-c.stopCh:
			c.flush()
			return
		}
	}
}

// flush swaps the entry map out under the lock and publishes the batch with
// a bounded timeout. A failed publish drops the batch; alerting is
// best-effort and must never back-pressure the logger.
func (c *LogCollector) flush() {
	c.mu.Lock()
	if len(c.entries) == 0 {
		c.mu.Unlock()
		return
	}
	batch := make([]AggregatedLogEntry, 0, len(c.entries))
	for _, e := range c.entries {
		batch = append(batch, *e)
	}
	c.entries = make(map[string]*AggregatedLogEntry)
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = c.config.Publisher.Publish(ctx, c.config.Topic, batch)
}

func (c *LogCollector) Close() {
	close(c.stopCh)
	c.wg.Wait()
}
