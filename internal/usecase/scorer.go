package usecase

import (
	"fmt"
	"sync"
	"time"

	"SigFuse/internal/domain/models"
	domrepo "SigFuse/internal/domain/repository"
	"SigFuse/pkg/config"
	"SigFuse/pkg/util"
)

// Event-type contributions to the base score. Delisting is negative and is
// additionally excluded from triggering outright.
var eventTypeScores = map[string]float64{
	models.EventListing:        25,
	models.EventFuturesListing: 15,
	models.EventDelisting:      -50,
	models.EventUnknown:        0,
}

// Scorer computes the multi-factor score and per-event trigger decision.
// First-sighting times are process-local; under multi-instance scale-out
// each instance judges freshness from its own first sighting.
type Scorer struct {
	classifier *Classifier
	metrics    domrepo.Metrics
	threshold  float64
	steps      []config.FreshnessStep

	mu        sync.Mutex
	firstSeen map[string]time.Time
	lastSweep time.Time
}

// firstSeenRetention bounds the first-seen map; entries older than this are
// dropped during the periodic sweep, so a symbol resurfacing much later
// counts as fresh again.
const firstSeenRetention = 30 * time.Minute

// NewScorer creates a scoring engine from config tables.
func NewScorer(cfg *config.Config, classifier *Classifier, metrics domrepo.Metrics) *Scorer {
	return &Scorer{
		classifier: classifier,
		metrics:    metrics,
		threshold:  cfg.Pipeline.TriggerThreshold,
		steps:      cfg.Pipeline.FreshnessSteps,
		firstSeen:  make(map[string]time.Time),
		lastSweep:  time.Now(),
	}
}

// Score computes the ScoreInfo for one event.
//
// total = (base + event_type) * exchange_mult * freshness_mult
//
// The multi-source bonus belongs to the aggregator, not here.
func (s *Scorer) Score(ev *models.RawEvent) *models.ScoreInfo {
	src := s.classifier.Classify(ev)
	symbol := util.NormalizeSymbol(ev.Symbol())

	eventScore := eventTypeScores[models.EventUnknown]
	if v, ok := eventTypeScores[ev.EventType]; ok {
		eventScore = v
	}

	exchMult := s.exchangeMultiplier(ev.Exchange)
	freshMult, isFirst := s.freshness(symbol, ev.DetectedTime())

	total := (src.BaseScore + eventScore) * exchMult * freshMult
	if total < 0 {
		total = 0
	}

	info := &models.ScoreInfo{
		Event:              ev,
		Source:             src,
		BaseScore:          src.BaseScore,
		EventTypeScore:     eventScore,
		ExchangeMultiplier: exchMult,
		FreshnessMult:      freshMult,
		TotalScore:         total,
		Symbols:            ev.Symbols,
		IsFirst:            isFirst,
	}

	switch {
	case ev.EventType == models.EventDelisting:
		info.ShouldTrigger = false
		info.TriggerReason = "delisting_excluded"
	case src.Tier == models.TierS:
		info.ShouldTrigger = true
		info.TriggerReason = fmt.Sprintf("tier_s_source:%s", src.Name)
	case total >= s.threshold:
		info.ShouldTrigger = true
		info.TriggerReason = fmt.Sprintf("score_threshold:%.1f>=%.1f", total, s.threshold)
	default:
		info.ShouldTrigger = false
		info.TriggerReason = fmt.Sprintf("below_threshold:%.1f<%.1f", total, s.threshold)
	}

	s.metrics.RecordScore(symbol, total)
	return info
}

// exchangeMultiplier maps the 0-100 exchange weight onto the 0.3x-1.5x
// multiplier band.
func (s *Scorer) exchangeMultiplier(exchange string) float64 {
	if exchange == "" {
		return 1.0
	}
	w := s.classifier.ExchangeWeight(exchange)
	return 0.3 + w/100*1.2
}

// freshness returns the step multiplier for elapsed time since the symbol
// was first observed, and whether this is the first sighting.
func (s *Scorer) freshness(symbol string, at time.Time) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked(at)

	first, ok := s.firstSeen[symbol]
	if !ok || at.Before(first) {
		s.firstSeen[symbol] = at
		return s.stepMultiplier(0), !ok
	}

	elapsed := at.Sub(first).Seconds()
	return s.stepMultiplier(elapsed), false
}

// stepMultiplier walks the configured non-increasing step function; the
// zero-bound entry acts as the floor.
func (s *Scorer) stepMultiplier(elapsedSec float64) float64 {
	floor := 0.5
	for _, step := range s.steps {
		if step.WithinSeconds == 0 {
			floor = step.Multiplier
			continue
		}
		if elapsedSec < step.WithinSeconds {
			return step.Multiplier
		}
	}
	return floor
}

func (s *Scorer) sweepLocked(now time.Time) {
	if now.Sub(s.lastSweep) < firstSeenRetention/2 {
		return
	}
	for sym, t := range s.firstSeen {
		if now.Sub(t) > firstSeenRetention {
			delete(s.firstSeen, sym)
		}
	}
	s.lastSweep = now
}
