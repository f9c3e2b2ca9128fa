package usecase

import (
	"context"
	"testing"

	"SigFuse/internal/domain/models"
	"SigFuse/internal/service/directory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(t *testing.T, dir *directory.MemoryDirectory) *Router {
	t.Helper()
	if dir == nil {
		dir = &directory.MemoryDirectory{}
	}
	return NewRouter(testConfig(), dir, newMemLocker(), nopMetrics{}, testLogger())
}

// fused builds a single-event fused signal the way the instant lane does.
func fused(t *testing.T, source, exchange, symbol string) *models.SuperEvent {
	t.Helper()
	cfg := testConfig()
	classifier := NewClassifier(cfg)
	scorer := NewScorer(cfg, classifier, nopMetrics{})
	dispatcher := NewDispatcher(cfg, classifier, nopMetrics{})
	return dispatcher.ToSuperEvent(scorer.Score(rawEvent(source, exchange, symbol)))
}

func TestRouterContractAddressGoesDEX(t *testing.T) {
	r := newRouter(t, nil)

	se := fused(t, "tg_alpha_intel", "", "PEPE2")
	se.Best.Event.ContractAddress = "0xabc123"
	se.Best.Event.Chain = "base"

	sig, outcome := r.Route(context.Background(), se)
	require.Equal(t, OutcomeRouted, outcome)
	assert.Equal(t, models.RouteDEX, sig.RouteType)
	assert.Equal(t, "dex_resolved", sig.RouteInfo.Venue)
	assert.Equal(t, "0xabc123", sig.RouteInfo.ContractAddress)
	assert.Equal(t, "base", sig.RouteInfo.Chain)
	assert.Equal(t, "contract_address_present", sig.Reason)
}

func TestRouterDexKeywordIsSpeculative(t *testing.T) {
	r := newRouter(t, nil)

	se := fused(t, "tg_alpha_intel", "", "MOON")
	se.Best.Event.RawText = "MOON fair launch on Uniswap in 10 minutes"

	sig, outcome := r.Route(context.Background(), se)
	require.Equal(t, OutcomeRouted, outcome)
	assert.Equal(t, models.RouteDEX, sig.RouteType)
	assert.Equal(t, "dex_speculative", sig.RouteInfo.Venue)
	assert.True(t, sig.RouteInfo.Speculative)
	assert.Equal(t, "ethereum", sig.RouteInfo.Chain) // default chain
}

func TestRouterOriginExchangeSpot(t *testing.T) {
	dir := &directory.MemoryDirectory{Spot: map[string][]string{"okx": {"SOL"}}}
	r := newRouter(t, dir)

	sig, outcome := r.Route(context.Background(), fused(t, "okx_announcement", "okx", "SOL"))
	require.Equal(t, OutcomeRouted, outcome)
	assert.Equal(t, models.RouteCEXSpot, sig.RouteType)
	assert.Equal(t, "okx", sig.RouteInfo.Exchange)
	assert.Equal(t, "SOLUSDT", sig.RouteInfo.Pair)
	assert.Equal(t, "origin_exchange_spot", sig.Reason)
}

func TestRouterAlternateExchangePrefersRanking(t *testing.T) {
	// Not listed on the origin venue; okx outranks mexc in the default
	// preference order.
	dir := &directory.MemoryDirectory{Spot: map[string][]string{
		"mexc": {"ARB"},
		"okx":  {"ARB"},
	}}
	r := newRouter(t, dir)

	sig, outcome := r.Route(context.Background(), fused(t, "upbit_notice", "upbit", "ARB"))
	require.Equal(t, OutcomeRouted, outcome)
	assert.Equal(t, "okx", sig.RouteInfo.Exchange)
	assert.Equal(t, "alternate_exchange_spot", sig.Reason)
}

func TestRouterPerpFallback(t *testing.T) {
	dir := &directory.MemoryDirectory{PerpList: []string{"TIA"}}
	r := newRouter(t, dir)

	sig, outcome := r.Route(context.Background(), fused(t, "okx_announcement", "okx", "TIA"))
	require.Equal(t, OutcomeRouted, outcome)
	assert.Equal(t, models.RouteHLPerp, sig.RouteType)
	assert.Equal(t, "hl_perp", sig.RouteInfo.Venue)
}

func TestRouterSpeculativeNeedsConviction(t *testing.T) {
	r := newRouter(t, nil)

	hot := fused(t, "okx_announcement", "okx", "NOVA")
	hot.FinalScore = 85
	sig, outcome := r.Route(context.Background(), hot)
	require.Equal(t, OutcomeRouted, outcome)
	assert.Equal(t, models.RouteDEX, sig.RouteType)
	assert.True(t, sig.RouteInfo.Speculative)
	assert.Equal(t, "speculative_dex", sig.Reason)

	cold := fused(t, "okx_announcement", "okx", "DIM")
	cold.FinalScore = 50
	sig, outcome = r.Route(context.Background(), cold)
	assert.Equal(t, OutcomeNoRoute, outcome)
	assert.Nil(t, sig)
}

func TestRouterLockBlocksDuplicateDispatch(t *testing.T) {
	dir := &directory.MemoryDirectory{Spot: map[string][]string{"okx": {"SOL"}}}
	r := newRouter(t, dir)

	se := fused(t, "okx_announcement", "okx", "SOL")
	sig, outcome := r.Route(context.Background(), se)
	require.Equal(t, OutcomeRouted, outcome)
	require.NotNil(t, sig)

	// Same (route_type, symbol) within the lock TTL is someone else's trade.
	dup, outcome := r.Route(context.Background(), se)
	assert.Equal(t, OutcomeLocked, outcome)
	assert.Nil(t, dup)
}

func TestRouterRouteIDStable(t *testing.T) {
	r := newRouter(t, nil)

	a := fused(t, "tg_alpha_intel", "", "PEPE2")
	a.Best.Event.ContractAddress = "0xabc"
	b := fused(t, "tg_alpha_intel", "", "PEPE2")
	b.Best.Event.ContractAddress = "0xabc"

	sigA, _ := r.Route(context.Background(), a)
	require.NotNil(t, sigA)
	assert.Equal(t, sigA.RouteID, r.routeID(b))
}
