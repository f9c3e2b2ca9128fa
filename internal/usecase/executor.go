package usecase

import (
	"context"
	"fmt"
	"time"

	"SigFuse/internal/domain/models"
	domrepo "SigFuse/internal/domain/repository"
	"SigFuse/pkg/bus"
	"SigFuse/pkg/config"
	"SigFuse/pkg/logger"

	"github.com/shopspring/decimal"
)

// Executor turns a risk-approved routed signal into a trade attempt.
// External failures become structured failed TradeResults; nothing from
// the venue side propagates as an error into the pipeline loop. Dry-run
// walks the exact same decision path and only swaps the final venue call
// for a deterministic simulated fill.
type Executor struct {
	cfg      *config.Config
	risk     *RiskManager
	resolver domrepo.ContractResolver
	safety   domrepo.SafetyChecker
	quotes   domrepo.QuoteService
	orders   domrepo.OrderGateway
	bus      domrepo.Bus
	audit    domrepo.AuditPublisher
	metrics  domrepo.Metrics
	logger   *logger.Logger
}

// NewExecutor wires the execution stage.
func NewExecutor(
	cfg *config.Config,
	risk *RiskManager,
	resolver domrepo.ContractResolver,
	safety domrepo.SafetyChecker,
	quotes domrepo.QuoteService,
	orders domrepo.OrderGateway,
	b domrepo.Bus,
	audit domrepo.AuditPublisher,
	metrics domrepo.Metrics,
	lgr *logger.Logger,
) *Executor {
	return &Executor{
		cfg:      cfg,
		risk:     risk,
		resolver: resolver,
		safety:   safety,
		quotes:   quotes,
		orders:   orders,
		bus:      b,
		audit:    audit,
		metrics:  metrics,
		logger:   lgr,
	}
}

// Execute runs the risk gate and venue dispatch for one routed signal and
// always returns a TradeResult describing what happened.
func (e *Executor) Execute(ctx context.Context, sig *models.RoutedSignal) *models.TradeResult {
	start := time.Now()
	defer func() {
		e.metrics.RecordLatency("execute", time.Since(start).Seconds())
	}()

	requested := e.risk.SuggestSize(e.risk.KellyInputs())
	check := e.risk.CheckTrade(sig.Symbol, requested)
	if !check.Approved() {
		res := e.failed(sig, fmt.Sprintf("risk_%s:%v", check.Action, check.Reasons))
		e.publish(ctx, res)
		return res
	}

	var res *models.TradeResult
	switch sig.RouteType {
	case models.RouteDEX:
		res = e.executeDEX(ctx, sig, check.AllowedAmount)
	case models.RouteCEXSpot, models.RouteHLPerp:
		res = e.executeCEX(ctx, sig, check.AllowedAmount)
	default:
		res = e.failed(sig, "unroutable")
	}

	e.risk.RecordTrade(res)
	if res.Success && !res.Simulated {
		e.risk.OpenPosition(res.Symbol, res.Price, res.Output)
	}
	e.publish(ctx, res)
	return res
}

// executeDEX runs resolve, safety check, quote, then the swap.
func (e *Executor) executeDEX(ctx context.Context, sig *models.RoutedSignal, amount decimal.Decimal) *models.TradeResult {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Execution.CallTimeout)
	defer cancel()

	address := sig.RouteInfo.ContractAddress
	chain := sig.RouteInfo.Chain
	if address == "" {
		resolved, err := e.resolver.Resolve(ctx, sig.Symbol, chain)
		if err != nil || resolved == "" {
			return e.failed(sig, "contract_unresolved")
		}
		address = resolved
	}

	report, err := e.safety.Check(ctx, address, chain)
	if err != nil {
		return e.failed(sig, "safety_check_unavailable")
	}
	if !report.Safe {
		e.risk.Blacklist(sig.Symbol, "unsafe_token:"+report.Reason)
		return e.failed(sig, "unsafe_token:"+report.Reason)
	}

	quote, err := e.quotes.Quote(ctx, address, chain, amount.String())
	if err != nil {
		return e.failed(sig, "quote_unavailable")
	}

	if e.cfg.Execution.DryRun {
		return e.simulated(sig, amount, quote.Price, quote.ExpectedOutput, quote.GasEstimate)
	}

	// Live swap submission goes through the order gateway like CEX orders;
	// the gateway fronts the chain-specific executors.
	res, err := e.orders.PlaceOrder(ctx, sig.RouteInfo.Venue, sig.Symbol, "buy", amount.String())
	if err != nil {
		return e.failed(sig, "swap_failed:"+err.Error())
	}
	res.RouteID = sig.RouteID
	res.RouteType = sig.RouteType
	res.GasCost = quote.GasEstimate
	return res
}

// executeCEX submits a spot or perp order through the gateway.
func (e *Executor) executeCEX(ctx context.Context, sig *models.RoutedSignal, amount decimal.Decimal) *models.TradeResult {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Execution.CallTimeout)
	defer cancel()

	quote, err := e.quotes.Quote(ctx, sig.Symbol, "", amount.String())
	if err != nil {
		return e.failed(sig, "quote_unavailable")
	}

	if e.cfg.Execution.DryRun {
		return e.simulated(sig, amount, quote.Price, quote.ExpectedOutput, decimal.Zero)
	}

	res, err := e.orders.PlaceOrder(ctx, sig.RouteInfo.Venue, sig.Symbol, "buy", amount.String())
	if err != nil {
		return e.failed(sig, "order_failed:"+err.Error())
	}
	res.RouteID = sig.RouteID
	res.RouteType = sig.RouteType
	return res
}

// simulated builds the deterministic dry-run fill at the quoted price.
func (e *Executor) simulated(sig *models.RoutedSignal, amount, price, output, gas decimal.Decimal) *models.TradeResult {
	if output.IsZero() && price.IsPositive() {
		output = amount.Div(price)
	}
	e.metrics.RecordEvent("executor", "simulated")
	return &models.TradeResult{
		RouteID:    sig.RouteID,
		Symbol:     sig.Symbol,
		RouteType:  sig.RouteType,
		Venue:      sig.RouteInfo.Venue,
		Success:    true,
		Simulated:  true,
		Amount:     amount,
		Price:      price,
		Output:     output,
		GasCost:    gas,
		ExecutedAt: time.Now().UnixMilli(),
	}
}

func (e *Executor) failed(sig *models.RoutedSignal, reason string) *models.TradeResult {
	e.metrics.RecordEvent("executor", "failed")
	e.logger.Warn("execution failed",
		logger.String("route_id", sig.RouteID),
		logger.String("symbol", sig.Symbol),
		logger.String("reason", reason))
	venue := ""
	if sig.RouteInfo != nil {
		venue = sig.RouteInfo.Venue
	}
	return &models.TradeResult{
		RouteID:    sig.RouteID,
		Symbol:     sig.Symbol,
		RouteType:  sig.RouteType,
		Venue:      venue,
		Success:    false,
		Simulated:  e.cfg.Execution.DryRun,
		FailReason: reason,
		ExecutedAt: time.Now().UnixMilli(),
	}
}

// publish fans the result out to the trade stream and the audit exporter.
// Both are best-effort; a dead backend must not stall execution.
func (e *Executor) publish(ctx context.Context, res *models.TradeResult) {
	if err := e.bus.Publish(ctx, bus.TopicTrades, res); err != nil {
		e.metrics.RecordError("trade_publish")
		e.logger.Error("failed to publish trade result",
			logger.String("route_id", res.RouteID), logger.Error(err))
	}
	if e.audit != nil {
		if err := e.audit.PublishTrade(ctx, res); err != nil {
			e.metrics.RecordError("audit_publish")
			e.logger.Error("failed to export trade audit",
				logger.String("route_id", res.RouteID), logger.Error(err))
		}
	}
}
