package usecase

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDispatcher(t *testing.T) (*Dispatcher, *Scorer) {
	t.Helper()
	cfg := testConfig()
	classifier := NewClassifier(cfg)
	return NewDispatcher(cfg, classifier, nopMetrics{}), NewScorer(cfg, classifier, nopMetrics{})
}

func TestDispatcherLaneSelection(t *testing.T) {
	d, s := newDispatcher(t)

	// Tier-S source goes instant regardless of venue.
	d.Enqueue(s.Score(rawEvent("tg_alpha_intel", "mexc", "AAA")))
	// Tier-1 exchange goes instant regardless of source tier.
	d.Enqueue(s.Score(rawEvent("okx_announcement", "binance", "BBB")))
	// Neither: windowed lane.
	d.Enqueue(s.Score(rawEvent("okx_announcement", "okx", "CCC")))

	instant, windowed := d.Depth()
	assert.Equal(t, 2, instant)
	assert.Equal(t, 1, windowed)
}

func TestDispatcherDrainInstantFirst(t *testing.T) {
	d, s := newDispatcher(t)

	d.Enqueue(s.Score(rawEvent("okx_announcement", "okx", "WIN1")))
	d.Enqueue(s.Score(rawEvent("binance_announcement", "binance", "FAST")))
	d.Enqueue(s.Score(rawEvent("okx_announcement", "okx", "WIN2")))

	out := d.Drain()
	require.Len(t, out, 3)
	assert.True(t, out[0].Instant)
	assert.Equal(t, "FAST", out[0].Info.Event.Symbol())
	assert.False(t, out[1].Instant)
	assert.Equal(t, "WIN1", out[1].Info.Event.Symbol())
	assert.Equal(t, "WIN2", out[2].Info.Event.Symbol())

	instant, windowed := d.Depth()
	assert.Zero(t, instant)
	assert.Zero(t, windowed)
}

func TestDispatcherDrainRespectsBatchSize(t *testing.T) {
	cfg := testConfig()
	cfg.Pipeline.BatchSize = 2
	classifier := NewClassifier(cfg)
	d := NewDispatcher(cfg, classifier, nopMetrics{})
	s := NewScorer(cfg, classifier, nopMetrics{})

	for _, sym := range []string{"Q1", "Q2", "Q3"} {
		d.Enqueue(s.Score(rawEvent("okx_announcement", "okx", sym)))
	}

	assert.Len(t, d.Drain(), 2)
	assert.Len(t, d.Drain(), 1)
	assert.Empty(t, d.Drain())
}

func TestDispatcherDepthDuringWrites(t *testing.T) {
	d, s := newDispatcher(t)

	// Status reads arrive from the HTTP handler while the pipeline loop
	// enqueues and drains.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			d.Enqueue(s.Score(rawEvent("okx_announcement", "okx", fmt.Sprintf("SYM%d", i))))
			d.Drain()
		}
	}()

	for {
		select {
		case <-done:
			instant, windowed := d.Depth()
			assert.Zero(t, instant)
			assert.Zero(t, windowed)
			return
		default:
			_, _ = d.Depth()
		}
	}
}

func TestDispatcherToSuperEvent(t *testing.T) {
	d, s := newDispatcher(t)

	info := s.Score(rawEvent("binance_announcement", "binance", "SOLUSDT"))
	se := d.ToSuperEvent(info)

	assert.Equal(t, "SOL", se.Symbol) // pair suffix stripped
	assert.True(t, se.Instant)
	assert.True(t, se.ShouldTrigger)
	assert.Equal(t, info.TotalScore, se.MaxScore)
	assert.Equal(t, info.TotalScore, se.FinalScore) // no multi bonus on the instant path
	assert.Equal(t, 1, se.SourceCount())
	assert.Equal(t, 1, se.ExchangeCount())
}
