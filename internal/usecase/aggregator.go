package usecase

import (
	"sync"
	"time"

	"SigFuse/internal/domain/models"
	domrepo "SigFuse/internal/domain/repository"
	"SigFuse/pkg/config"
	"SigFuse/pkg/util"
)

// Aggregator merges same-symbol observations arriving within the
// aggregation window into SuperEvents. The periodic sweep finalizes an
// entry early on multi-exchange confirmation, or once its window elapses.
// Finalization destroys the entry: a later event for the same symbol
// opens a new burst.
//
// State is process-local by design; cross-instance duplicate suppression is
// the router lock's job, not the aggregator's.
type Aggregator struct {
	window         time.Duration
	bonusPerSource float64
	maxBonus       float64
	metrics        domrepo.Metrics

	mu      sync.Mutex
	pending map[string]*models.SuperEvent
}

// NewAggregator creates the windowed cross-source aggregator.
func NewAggregator(cfg *config.Config, metrics domrepo.Metrics) *Aggregator {
	return &Aggregator{
		window:         time.Duration(cfg.Pipeline.WindowSeconds * float64(time.Second)),
		bonusPerSource: cfg.Pipeline.BonusPerSource,
		maxBonus:       cfg.Pipeline.MaxMultiBonus,
		pending:        make(map[string]*models.SuperEvent),
		metrics:        metrics,
	}
}

// Add folds a scored event into the pending aggregate for its symbol,
// creating one when absent. Finalization happens in Sweep so that a burst
// of near-simultaneous events merges fully before emission.
func (a *Aggregator) Add(info *models.ScoreInfo) {
	symbol := util.NormalizeSymbol(info.Event.Symbol())
	now := info.Event.DetectedTime()

	a.mu.Lock()
	defer a.mu.Unlock()

	se, ok := a.pending[symbol]
	if !ok {
		se = &models.SuperEvent{
			Symbol:    symbol,
			Sources:   make(map[string]bool),
			Exchanges: make(map[string]bool),
			FirstSeen: now,
		}
		a.pending[symbol] = se
		a.metrics.RecordEvent("aggregator", "window_opened")
	}

	se.Sources[info.Source.Name] = true
	if info.Event.Exchange != "" {
		se.Exchanges[info.Event.Exchange] = true
	}
	if se.Best == nil || info.TotalScore > se.MaxScore {
		se.Best = info
		se.MaxScore = info.TotalScore
	}
	se.ShouldTrigger = se.ShouldTrigger || info.ShouldTrigger
	se.LastUpdate = now
	a.recompute(se)
}

// Sweep finalizes pending aggregates and returns those that trigger.
// An entry goes out either because its window elapsed, or early on
// multi-exchange confirmation: waiting out the window after two venues
// confirm only delays execution. Driven by the pipeline loop, one pass
// over all entries, no per-symbol timers.
func (a *Aggregator) Sweep(now time.Time) []*models.SuperEvent {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []*models.SuperEvent
	for symbol, se := range a.pending {
		how := ""
		switch {
		case se.ExchangeCount() >= 2:
			how = "multi_exchange"
		case now.Sub(se.FirstSeen) >= a.window:
			how = "window_elapsed"
		default:
			continue
		}
		if fin := a.finalize(symbol, se, how); fin != nil {
			out = append(out, fin)
		}
	}
	a.metrics.RecordGauge("pending_windows", float64(len(a.pending)))
	return out
}

// PendingCount reports the number of open aggregation windows. Safe to call
// from the ops handler while the pipeline loop writes.
func (a *Aggregator) PendingCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

// Window exposes the configured aggregation window.
func (a *Aggregator) Window() time.Duration { return a.window }

func (a *Aggregator) recompute(se *models.SuperEvent) {
	effective := se.SourceCount()
	if n := se.ExchangeCount(); n > effective {
		effective = n
	}
	bonus := float64(effective-1) * a.bonusPerSource
	if bonus > a.maxBonus {
		bonus = a.maxBonus
	}
	if bonus < 0 {
		bonus = 0
	}
	se.MultiBonus = bonus
	se.FinalScore = se.MaxScore + bonus
}

func (a *Aggregator) finalize(symbol string, se *models.SuperEvent, how string) *models.SuperEvent {
	delete(a.pending, symbol)
	if !se.ShouldTrigger {
		a.metrics.RecordEvent("aggregator", "filtered")
		return nil
	}
	a.metrics.RecordEvent("aggregator", "finalized_"+how)
	return se
}
