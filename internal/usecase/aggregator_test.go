package usecase

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAggregator(t *testing.T) (*Aggregator, *Scorer) {
	t.Helper()
	cfg := testConfig()
	classifier := NewClassifier(cfg)
	return NewAggregator(cfg, nopMetrics{}), NewScorer(cfg, classifier, nopMetrics{})
}

func TestAggregatorMultiExchangeEmitsEarly(t *testing.T) {
	agg, scorer := newAggregator(t)
	now := time.Now()

	for _, ex := range []string{"gate", "kucoin", "bitget"} {
		ev := rawEvent(ex+"_announcement", ex, "MULTI")
		ev.DetectedAt = now.UnixMilli()
		agg.Add(scorer.Score(ev))
	}
	assert.Equal(t, 1, agg.PendingCount())

	// Sweep well inside the window: multi-exchange confirmation emits early.
	out := agg.Sweep(now.Add(100 * time.Millisecond))
	require.Len(t, out, 1)

	se := out[0]
	assert.Equal(t, "MULTI", se.Symbol)
	assert.Equal(t, 3, se.ExchangeCount())
	assert.Equal(t, 3, se.SourceCount())
	assert.Equal(t, 20.0, se.MultiBonus) // (3-1)*10, capped at 30
	assert.Equal(t, se.MaxScore+se.MultiBonus, se.FinalScore)
	assert.Equal(t, 0, agg.PendingCount())
}

func TestAggregatorSingleExchangeWaitsForWindow(t *testing.T) {
	agg, scorer := newAggregator(t)
	now := time.Now()

	ev := rawEvent("okx_announcement", "okx", "SOLO")
	ev.DetectedAt = now.UnixMilli()
	agg.Add(scorer.Score(ev))

	// Inside the window nothing comes out.
	assert.Empty(t, agg.Sweep(now.Add(500*time.Millisecond)))
	assert.Equal(t, 1, agg.PendingCount())

	// After the window it emits.
	out := agg.Sweep(now.Add(agg.Window() + 10*time.Millisecond))
	require.Len(t, out, 1)
	assert.Equal(t, 1, out[0].ExchangeCount())
	assert.Equal(t, 0.0, out[0].MultiBonus)
}

func TestAggregatorFiltersNonTriggering(t *testing.T) {
	agg, scorer := newAggregator(t)
	now := time.Now()

	ev := rawEvent("random_scraper", "", "MEH")
	ev.EventType = "unknown"
	ev.DetectedAt = now.UnixMilli()
	info := scorer.Score(ev)
	require.False(t, info.ShouldTrigger)

	agg.Add(info)
	out := agg.Sweep(now.Add(agg.Window() + time.Millisecond))
	assert.Empty(t, out)
	assert.Equal(t, 0, agg.PendingCount())
}

func TestAggregatorBestScoreWins(t *testing.T) {
	agg, scorer := newAggregator(t)
	now := time.Now()

	weak := rawEvent("tw_whale_watch", "", "BEST")
	weak.DetectedAt = now.UnixMilli()
	strong := rawEvent("okx_announcement", "okx", "BEST")
	strong.DetectedAt = now.UnixMilli()

	weakInfo := scorer.Score(weak)
	strongInfo := scorer.Score(strong)
	agg.Add(weakInfo)
	agg.Add(strongInfo)

	out := agg.Sweep(now.Add(agg.Window() + time.Millisecond))
	require.Len(t, out, 1)
	assert.Equal(t, strongInfo.TotalScore, out[0].MaxScore)
	assert.Equal(t, 2, out[0].SourceCount())
}

func TestAggregatorPendingCountDuringWrites(t *testing.T) {
	agg, scorer := newAggregator(t)
	now := time.Now()

	// Status reads arrive from the HTTP handler while the pipeline loop
	// adds and sweeps.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			ev := rawEvent("okx_announcement", "okx", fmt.Sprintf("SYM%d", i))
			ev.DetectedAt = now.UnixMilli()
			agg.Add(scorer.Score(ev))
			agg.Sweep(now.Add(agg.Window() + time.Millisecond))
		}
	}()

	for {
		select {
		case <-done:
			assert.Equal(t, 0, agg.PendingCount())
			return
		default:
			_ = agg.PendingCount()
		}
	}
}

func TestAggregatorNewBurstAfterFinalize(t *testing.T) {
	agg, scorer := newAggregator(t)
	now := time.Now()

	ev := rawEvent("okx_announcement", "okx", "AGAIN")
	ev.DetectedAt = now.UnixMilli()
	agg.Add(scorer.Score(ev))
	require.Len(t, agg.Sweep(now.Add(agg.Window()+time.Millisecond)), 1)

	later := rawEvent("bybit_announcement", "bybit", "AGAIN")
	later.DetectedAt = now.Add(10 * time.Second).UnixMilli()
	agg.Add(scorer.Score(later))
	assert.Equal(t, 1, agg.PendingCount())
}
