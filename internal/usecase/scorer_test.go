package usecase

import (
	"testing"
	"time"

	"SigFuse/internal/domain/models"

	"github.com/stretchr/testify/assert"
)

func newScorer(t *testing.T) *Scorer {
	t.Helper()
	cfg := testConfig()
	return NewScorer(cfg, NewClassifier(cfg), nopMetrics{})
}

func TestScorerTierSAlwaysTriggers(t *testing.T) {
	s := newScorer(t)

	// Low-weight venue and stale detection cannot stop a Tier-S source.
	ev := rawEvent("tg_alpha_intel", "mexc", "XAI")
	ev.DetectedAt = time.Now().Add(-10 * time.Minute).UnixMilli()

	info := s.Score(ev)
	assert.True(t, info.ShouldTrigger)
	assert.Contains(t, info.TriggerReason, "tier_s_source")
}

func TestScorerDelistingNeverTriggers(t *testing.T) {
	s := newScorer(t)

	ev := rawEvent("binance_announcement", "binance", "LUNA")
	ev.EventType = models.EventDelisting

	info := s.Score(ev)
	assert.False(t, info.ShouldTrigger)
	assert.Equal(t, "delisting_excluded", info.TriggerReason)
	assert.GreaterOrEqual(t, info.TotalScore, 0.0)
}

func TestScorerExchangeWeightMonotonic(t *testing.T) {
	s := newScorer(t)

	// Distinct symbols so freshness does not interfere.
	top := s.Score(rawEvent("okx_announcement", "binance", "AAA"))
	low := s.Score(rawEvent("okx_announcement", "mexc", "BBB"))

	assert.Greater(t, top.TotalScore, low.TotalScore)
	assert.Greater(t, top.ExchangeMultiplier, low.ExchangeMultiplier)
	assert.InDelta(t, 1.5, top.ExchangeMultiplier, 0.001)  // weight 100
	assert.InDelta(t, 0.78, low.ExchangeMultiplier, 0.001) // weight 40
}

func TestScorerFreshnessDecay(t *testing.T) {
	s := newScorer(t)
	base := time.Now()

	mk := func(offset time.Duration) *models.ScoreInfo {
		ev := rawEvent("okx_announcement", "okx", "FRESH")
		ev.DetectedAt = base.Add(offset).UnixMilli()
		return s.Score(ev)
	}

	first := mk(0)
	assert.True(t, first.IsFirst)
	assert.InDelta(t, 1.3, first.FreshnessMult, 0.001)

	within := mk(60 * time.Second)
	assert.False(t, within.IsFirst)
	assert.InDelta(t, 1.0, within.FreshnessMult, 0.001)

	older := mk(200 * time.Second)
	assert.InDelta(t, 0.8, older.FreshnessMult, 0.001)

	floor := mk(20 * time.Minute)
	assert.InDelta(t, 0.5, floor.FreshnessMult, 0.001)

	assert.Greater(t, first.TotalScore, within.TotalScore)
	assert.Greater(t, within.TotalScore, older.TotalScore)
	assert.Greater(t, older.TotalScore, floor.TotalScore)
}

func TestScorerThresholdTrigger(t *testing.T) {
	s := newScorer(t)

	// (55 + 25) * 0.96 * 1.3 is roughly 100, above the default threshold.
	hot := s.Score(rawEvent("gate_announcement", "gate", "HOT"))
	assert.True(t, hot.ShouldTrigger)
	assert.Contains(t, hot.TriggerReason, "score_threshold")

	// (15 + 0) * 0.66 * 1.3 falls well below the threshold.
	cold := rawEvent("random_scraper", "tiny-exchange", "COLD")
	cold.EventType = models.EventUnknown
	info := s.Score(cold)
	assert.False(t, info.ShouldTrigger)
	assert.Contains(t, info.TriggerReason, "below_threshold")
}
