package usecase

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"SigFuse/internal/domain/models"
	"SigFuse/internal/middleware"
	"SigFuse/internal/service/directory"
	"SigFuse/pkg/bus"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPipelineFixture(t *testing.T, dir *directory.MemoryDirectory) (*Pipeline, *bus.MemoryStream) {
	t.Helper()
	cfg := testConfig()
	cfg.Execution.DryRun = true
	if dir == nil {
		dir = &directory.MemoryDirectory{}
	}

	stream := bus.NewMemoryStream()
	lgr := testLogger()
	classifier := NewClassifier(cfg)
	scorer := NewScorer(cfg, classifier, nopMetrics{})
	dispatcher := NewDispatcher(cfg, classifier, nopMetrics{})
	aggregator := NewAggregator(cfg, nopMetrics{})
	router := NewRouter(cfg, dir, newMemLocker(), nopMetrics{}, lgr)
	risk := NewRiskManager(cfg, nopMetrics{}, lgr)
	executor := NewExecutor(cfg, risk,
		&fakeResolver{address: "0xresolved"},
		&fakeSafety{report: &models.SafetyReport{Safe: true}},
		&fakeQuotes{quote: &models.Quote{Price: decimal.NewFromFloat(0.5)}},
		&fakeOrders{},
		stream, nil, nopMetrics{}, lgr)

	p := NewPipeline(cfg, stream, NewDeduplicator(cfg.Pipeline.DedupCapacity, nopMetrics{}),
		scorer, dispatcher, aggregator, router, executor, dir, nopMetrics{}, lgr)
	p.SetFront(middleware.NewIngestGuard(p, nopMetrics{}))
	return p, stream
}

func TestPipelineInstantLaneEndToEnd(t *testing.T) {
	dir := &directory.MemoryDirectory{Spot: map[string][]string{"binance": {"NEW"}}}
	p, stream := newPipelineFixture(t, dir)
	ctx := context.Background()

	require.NoError(t, p.Process(ctx, rawEvent("binance_announcement", "binance", "NEW")))
	p.tick(ctx, time.Now())

	assert.Equal(t, 1, stream.Len(bus.TopicFused))
	assert.Equal(t, 1, stream.Len(bus.TopicRouteCEX))
	require.Equal(t, 1, stream.Len(bus.TopicTrades))

	msgs, err := stream.Read(ctx, bus.TopicTrades, "g", "c", 10, 0)
	require.NoError(t, err)
	var res models.TradeResult
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &res))
	assert.Equal(t, "NEW", res.Symbol)
	assert.Equal(t, models.RouteCEXSpot, res.RouteType)
	assert.True(t, res.Success)
	assert.True(t, res.Simulated)
}

func TestPipelineWindowedLaneWaitsForSweep(t *testing.T) {
	dir := &directory.MemoryDirectory{Spot: map[string][]string{"okx": {"WAIT"}}}
	p, stream := newPipelineFixture(t, dir)
	ctx := context.Background()
	start := time.Now()

	require.NoError(t, p.Process(ctx, rawEvent("okx_announcement", "okx", "WAIT")))

	// First tick queues the event into its aggregation window.
	p.tick(ctx, start)
	assert.Zero(t, stream.Len(bus.TopicTrades))

	// The window has to elapse before a single-exchange signal fuses.
	p.tick(ctx, start.Add(3*time.Second))
	assert.Equal(t, 1, stream.Len(bus.TopicTrades))
}

func TestPipelineMultiExchangeBurstFusesOnce(t *testing.T) {
	dir := &directory.MemoryDirectory{Spot: map[string][]string{
		"gate": {"MULTI"}, "kucoin": {"MULTI"}, "bitget": {"MULTI"},
	}}
	p, stream := newPipelineFixture(t, dir)
	ctx := context.Background()

	for _, ex := range []string{"gate", "kucoin", "bitget"} {
		require.NoError(t, p.Process(ctx, rawEvent(ex+"_announcement", ex, "MULTI")))
	}
	p.tick(ctx, time.Now())

	// Three confirmations fuse into exactly one routed trade.
	require.Equal(t, 1, stream.Len(bus.TopicFused))
	assert.Equal(t, 1, stream.Len(bus.TopicTrades))

	msgs, _ := stream.Read(ctx, bus.TopicFused, "g", "c", 10, 0)
	var se models.SuperEvent
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &se))
	assert.Len(t, se.Exchanges, 3)
}

func TestPipelineDedupSuppressesRepeat(t *testing.T) {
	dir := &directory.MemoryDirectory{Spot: map[string][]string{"binance": {"ONCE"}}}
	p, stream := newPipelineFixture(t, dir)
	ctx := context.Background()

	ev := rawEvent("binance_announcement", "binance", "ONCE")
	require.NoError(t, p.Process(ctx, ev))
	require.NoError(t, p.Process(ctx, ev))
	p.tick(ctx, time.Now())

	assert.Equal(t, 1, stream.Len(bus.TopicTrades))
}

func TestPipelineConsumeRejectsMalformedEvents(t *testing.T) {
	dir := &directory.MemoryDirectory{Spot: map[string][]string{"binance": {"GOOD"}}}
	p, stream := newPipelineFixture(t, dir)

	ctx, cancel := context.WithCancel(context.Background())
	// No symbols, no text, no timestamp; only the source is set.
	bad := &models.RawEvent{Source: "late_scraper"}
	require.NoError(t, stream.Publish(ctx, bus.TopicRawEvents, bad))
	require.NoError(t, stream.Publish(ctx, bus.TopicRawEvents,
		rawEvent("binance_announcement", "binance", "GOOD")))

	done := make(chan struct{})
	go func() {
		p.consumeLoop(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		p.tick(ctx, time.Now())
		return stream.Len(bus.TopicTrades) >= 1
	}, 2*time.Second, 20*time.Millisecond)
	cancel()
	<-done

	// Only the well-formed event traded; the malformed one never queued
	// anywhere or opened a window.
	assert.Equal(t, 1, stream.Len(bus.TopicTrades))
	instant, windowed := p.dispatcher.Depth()
	assert.Zero(t, instant)
	assert.Zero(t, windowed)
	assert.Zero(t, p.aggregator.PendingCount())
}

func TestPipelineLowScoreInstantCorroboratesWindow(t *testing.T) {
	dir := &directory.MemoryDirectory{Spot: map[string][]string{"gate": {"CORR"}}}
	p, stream := newPipelineFixture(t, dir)
	ctx := context.Background()

	// A below-threshold observation on a Tier-1 venue cannot trade alone,
	// but it still counts as a second exchange for the window.
	weak := rawEvent("random_scraper", "binance", "CORR")
	weak.EventType = models.EventUnknown
	require.NoError(t, p.Process(ctx, weak))
	require.NoError(t, p.Process(ctx, rawEvent("gate_announcement", "gate", "CORR")))

	p.tick(ctx, time.Now())

	require.Equal(t, 1, stream.Len(bus.TopicFused))
	msgs, err := stream.Read(ctx, bus.TopicFused, "g", "c", 10, 0)
	require.NoError(t, err)
	var se models.SuperEvent
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &se))
	assert.Len(t, se.Exchanges, 2)
	assert.Equal(t, 1, stream.Len(bus.TopicTrades))
}

func TestPipelineConsumesFromRawStream(t *testing.T) {
	dir := &directory.MemoryDirectory{Spot: map[string][]string{"binance": {"FEED"}}}
	p, stream := newPipelineFixture(t, dir)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, stream.Publish(ctx, bus.TopicRawEvents,
		rawEvent("binance_announcement", "binance", "FEED")))

	done := make(chan struct{})
	go func() {
		p.consumeLoop(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		p.tick(ctx, time.Now())
		return stream.Len(bus.TopicTrades) >= 1
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	<-done
	assert.Equal(t, 1, stream.Len(bus.TopicTrades))
}
