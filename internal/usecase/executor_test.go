package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"SigFuse/internal/domain/models"
	"SigFuse/pkg/bus"
	"SigFuse/pkg/config"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	address string
	err     error
}

func (f *fakeResolver) Resolve(context.Context, string, string) (string, error) {
	return f.address, f.err
}

type fakeSafety struct {
	report *models.SafetyReport
	err    error
}

func (f *fakeSafety) Check(context.Context, string, string) (*models.SafetyReport, error) {
	return f.report, f.err
}

type fakeQuotes struct {
	quote *models.Quote
	err   error
}

func (f *fakeQuotes) Quote(context.Context, string, string, string) (*models.Quote, error) {
	return f.quote, f.err
}

type fakeOrders struct {
	result *models.TradeResult
	err    error
}

func (f *fakeOrders) PlaceOrder(context.Context, string, string, string, string) (*models.TradeResult, error) {
	return f.result, f.err
}

type executorFixture struct {
	cfg      *config.Config
	risk     *RiskManager
	resolver *fakeResolver
	safety   *fakeSafety
	quotes   *fakeQuotes
	orders   *fakeOrders
	stream   *bus.MemoryStream
}

func newExecutorFixture(t *testing.T) (*Executor, *executorFixture) {
	t.Helper()
	cfg := testConfig()
	cfg.Execution.DryRun = true
	fx := &executorFixture{
		cfg:      cfg,
		risk:     NewRiskManager(cfg, nopMetrics{}, testLogger()),
		resolver: &fakeResolver{address: "0xresolved"},
		safety:   &fakeSafety{report: &models.SafetyReport{Safe: true}},
		quotes:   &fakeQuotes{quote: &models.Quote{Price: decimal.NewFromFloat(0.5)}},
		orders:   &fakeOrders{},
		stream:   bus.NewMemoryStream(),
	}
	e := NewExecutor(cfg, fx.risk, fx.resolver, fx.safety, fx.quotes, fx.orders,
		fx.stream, nil, nopMetrics{}, testLogger())
	return e, fx
}

func dexSignal(symbol string) *models.RoutedSignal {
	return &models.RoutedSignal{
		RouteID:   "r-" + symbol,
		RouteType: models.RouteDEX,
		Symbol:    symbol,
		RouteInfo: &models.RouteInfo{
			Venue:       "dex_speculative",
			Chain:       "ethereum",
			Speculative: true,
		},
	}
}

func cexSignal(symbol string) *models.RoutedSignal {
	return &models.RoutedSignal{
		RouteID:   "r-" + symbol,
		RouteType: models.RouteCEXSpot,
		Symbol:    symbol,
		RouteInfo: &models.RouteInfo{Venue: "cex_spot", Exchange: "okx", Pair: symbol + "USDT"},
	}
}

func TestExecutorDryRunSimulatesFill(t *testing.T) {
	e, fx := newExecutorFixture(t)

	res := e.Execute(context.Background(), cexSignal("SOL"))
	require.True(t, res.Success)
	assert.True(t, res.Simulated)
	assert.True(t, res.Price.Equal(decimal.NewFromFloat(0.5)))
	// Size comes from the Kelly cap: 10% of 10000, clamped to the 5%
	// single-trade limit of 500, filled at 0.5.
	assert.True(t, res.Amount.Equal(decimal.NewFromInt(500)), "got %s", res.Amount)
	assert.True(t, res.Output.Equal(decimal.NewFromInt(1000)), "got %s", res.Output)

	// Simulated fills never open positions or touch counters.
	assert.Equal(t, 0, fx.risk.OpenPositions())
	assert.Equal(t, 1, fx.stream.Len(bus.TopicTrades))
}

func TestExecutorDEXResolvesAndChecksSafety(t *testing.T) {
	e, _ := newExecutorFixture(t)

	res := e.Execute(context.Background(), dexSignal("MOON"))
	require.True(t, res.Success)
	assert.True(t, res.Simulated)
	assert.Equal(t, "dex_speculative", res.Venue)
}

func TestExecutorUnresolvedContractFails(t *testing.T) {
	e, fx := newExecutorFixture(t)
	fx.resolver.address = ""

	res := e.Execute(context.Background(), dexSignal("GHOST"))
	assert.False(t, res.Success)
	assert.Equal(t, "contract_unresolved", res.FailReason)
	assert.Equal(t, 1, fx.stream.Len(bus.TopicTrades))
}

func TestExecutorUnsafeTokenBlacklists(t *testing.T) {
	e, fx := newExecutorFixture(t)
	fx.safety.report = &models.SafetyReport{Safe: false, Reason: "honeypot"}

	res := e.Execute(context.Background(), dexSignal("RUG"))
	assert.False(t, res.Success)
	assert.Contains(t, res.FailReason, "unsafe_token:honeypot")

	// The symbol is barred from further attempts.
	check := fx.risk.CheckTrade("RUG", decimal.NewFromInt(100))
	assert.Equal(t, models.RiskBlock, check.Action)
	assert.Contains(t, check.Reasons, "blacklisted:dynamic")
}

func TestExecutorQuoteFailureIsStructured(t *testing.T) {
	e, fx := newExecutorFixture(t)
	fx.quotes.err = errors.New("upstream 503")

	res := e.Execute(context.Background(), cexSignal("SOL"))
	assert.False(t, res.Success)
	assert.Equal(t, "quote_unavailable", res.FailReason)
}

func TestExecutorRiskRejectionShortCircuits(t *testing.T) {
	e, fx := newExecutorFixture(t)
	fx.cfg.Risk.StaticBlacklist = []string{"SCAM"}
	fx.risk = NewRiskManager(fx.cfg, nopMetrics{}, testLogger())
	e.risk = fx.risk

	res := e.Execute(context.Background(), cexSignal("SCAM"))
	assert.False(t, res.Success)
	assert.Contains(t, res.FailReason, "risk_BLOCK")
	assert.Contains(t, res.FailReason, "blacklisted:static")
	// Rejected before any venue call, but the result still hits the stream.
	assert.Equal(t, 1, fx.stream.Len(bus.TopicTrades))
}

func TestExecutorLiveFillOpensPosition(t *testing.T) {
	e, fx := newExecutorFixture(t)
	fx.cfg.Execution.DryRun = false
	fx.orders.result = &models.TradeResult{
		Symbol:  "SOL",
		Venue:   "cex_spot",
		Success: true,
		Amount:  decimal.NewFromInt(500),
		Price:   decimal.NewFromFloat(0.5),
		Output:  decimal.NewFromInt(1000),
	}

	res := e.Execute(context.Background(), cexSignal("SOL"))
	require.True(t, res.Success)
	assert.False(t, res.Simulated)
	assert.Equal(t, "r-SOL", res.RouteID)
	assert.Equal(t, models.RouteCEXSpot, res.RouteType)

	pos, ok := fx.risk.Position("SOL")
	require.True(t, ok)
	assert.True(t, pos.Amount.Equal(decimal.NewFromInt(1000)))
}

func TestExecutorPublishedResultRoundTrips(t *testing.T) {
	e, fx := newExecutorFixture(t)

	e.Execute(context.Background(), cexSignal("SOL"))
	msgs, err := fx.stream.Read(context.Background(), bus.TopicTrades, "g", "c", 10, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	var got models.TradeResult
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &got))
	assert.Equal(t, "SOL", got.Symbol)
	assert.True(t, got.Simulated)
}
