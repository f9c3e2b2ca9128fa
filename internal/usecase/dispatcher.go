package usecase

import (
	"sync"

	"SigFuse/internal/domain/models"
	domrepo "SigFuse/internal/domain/repository"
	"SigFuse/pkg/config"
	"SigFuse/pkg/util"
)

// Dispatched is one scored event leaving the priority queues.
type Dispatched struct {
	Info    *models.ScoreInfo
	Instant bool // bypasses the aggregation window
}

// Dispatcher partitions scored events into an instant lane (Tier-S source
// or Tier-1 exchange) and a windowed lane, draining instant-first with a
// bounded per-cycle batch to keep latency variance flat under bursts.
type Dispatcher struct {
	classifier *Classifier
	metrics    domrepo.Metrics
	batchSize  int

	mu     sync.Mutex
	high   []*models.ScoreInfo
	normal []*models.ScoreInfo
}

// NewDispatcher creates the two-lane priority dispatcher.
func NewDispatcher(cfg *config.Config, classifier *Classifier, metrics domrepo.Metrics) *Dispatcher {
	return &Dispatcher{
		classifier: classifier,
		metrics:    metrics,
		batchSize:  cfg.Pipeline.BatchSize,
	}
}

// Enqueue places a scored event on its lane.
func (d *Dispatcher) Enqueue(info *models.ScoreInfo) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.isInstant(info) {
		d.high = append(d.high, info)
		d.metrics.RecordEvent("dispatcher", "instant")
		return
	}
	d.normal = append(d.normal, info)
	d.metrics.RecordEvent("dispatcher", "windowed")
}

// Drain removes up to the per-cycle batch from the queues, instant lane
// first.
func (d *Dispatcher) Drain() []Dispatched {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]Dispatched, 0, d.batchSize)
	for len(out) < d.batchSize && len(d.high) > 0 {
		out = append(out, Dispatched{Info: d.high[0], Instant: true})
		d.high = d.high[1:]
	}
	for len(out) < d.batchSize && len(d.normal) > 0 {
		out = append(out, Dispatched{Info: d.normal[0]})
		d.normal = d.normal[1:]
	}
	return out
}

// Depth reports queued items per lane (instant, windowed). Safe to call
// from the ops handler while the pipeline loop writes.
func (d *Dispatcher) Depth() (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.high), len(d.normal)
}

// ToSuperEvent wraps a single instant-lane event as its own fused signal,
// skipping the window.
func (d *Dispatcher) ToSuperEvent(info *models.ScoreInfo) *models.SuperEvent {
	now := info.Event.DetectedTime()
	se := &models.SuperEvent{
		Symbol:        util.NormalizeSymbol(info.Event.Symbol()),
		Sources:       map[string]bool{info.Source.Name: true},
		Exchanges:     make(map[string]bool),
		Best:          info,
		MaxScore:      info.TotalScore,
		FinalScore:    info.TotalScore,
		ShouldTrigger: info.ShouldTrigger,
		FirstSeen:     now,
		LastUpdate:    now,
		Instant:       true,
	}
	if info.Event.Exchange != "" {
		se.Exchanges[info.Event.Exchange] = true
	}
	return se
}

func (d *Dispatcher) isInstant(info *models.ScoreInfo) bool {
	if info.Source.Tier == models.TierS {
		return true
	}
	return info.Event.Exchange != "" && d.classifier.IsTier1Exchange(info.Event.Exchange)
}
