package usecase

import (
	"container/list"
	"sync"

	"SigFuse/internal/domain/models"
	domrepo "SigFuse/internal/domain/repository"
	"SigFuse/pkg/util"
)

// dedupTextPrefix bounds how much raw text participates in the content hash.
const dedupTextPrefix = 64

// Deduplicator drops repeat observations of the same content within a
// bounded recency window. Memory is O(capacity): the oldest hash is evicted
// once the window is full, so a repeat arriving after eviction passes as
// new — an accepted trade-off for bounded memory under sustained throughput.
type Deduplicator struct {
	mu       sync.Mutex
	capacity int
	order    *list.List               // insertion order, front = oldest
	index    map[string]*list.Element // hash -> order element
	metrics  domrepo.Metrics
}

// NewDeduplicator creates a dedup filter with the given capacity.
func NewDeduplicator(capacity int, metrics domrepo.Metrics) *Deduplicator {
	if capacity <= 0 {
		capacity = 10000
	}
	return &Deduplicator{
		capacity: capacity,
		order:    list.New(),
		index:    make(map[string]*list.Element, capacity),
		metrics:  metrics,
	}
}

// Seen reports whether an equivalent event was already accepted within the
// retention window, inserting the event's hash when it is first seen.
func (d *Deduplicator) Seen(ev *models.RawEvent) bool {
	key := util.HashFields(
		ev.Source,
		ev.Exchange,
		util.NormalizeSymbol(ev.Symbol()),
		util.Truncate(ev.RawText, dedupTextPrefix),
	)

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, dup := d.index[key]; dup {
		d.metrics.RecordEvent("dedup", "duplicate")
		return true
	}

	if d.order.Len() >= d.capacity {
		oldest := d.order.Front()
		if oldest != nil {
			d.order.Remove(oldest)
			delete(d.index, oldest.Value.(string))
		}
	}
	d.index[key] = d.order.PushBack(key)
	return false
}

// Len reports the current number of retained hashes.
func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.order.Len()
}
