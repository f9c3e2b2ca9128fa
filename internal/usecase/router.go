package usecase

import (
	"context"
	"fmt"
	"time"

	"SigFuse/internal/domain/models"
	domrepo "SigFuse/internal/domain/repository"
	"SigFuse/pkg/config"
	"SigFuse/pkg/logger"
	"SigFuse/pkg/util"

	"github.com/go-playground/validator/v10"
)

// RouteOutcome classifies what Route did with a fused signal.
type RouteOutcome string

const (
	OutcomeRouted  RouteOutcome = "routed"
	OutcomeNoRoute RouteOutcome = "no_route"
	OutcomeLocked  RouteOutcome = "locked" // another instance holds the route lock
)

// Router maps a fused signal to an execution venue. The distributed
// (route_type, symbol) lock is the sole cross-instance guard against
// duplicate dispatch; a lock miss means another consumer already routed
// this symbol to that venue within the TTL.
type Router struct {
	cfg       *config.Config
	directory domrepo.SymbolDirectory
	locker    domrepo.Locker
	metrics   domrepo.Metrics
	logger    *logger.Logger
	validate  *validator.Validate
}

// NewRouter creates a signal router.
func NewRouter(cfg *config.Config, directory domrepo.SymbolDirectory, locker domrepo.Locker, metrics domrepo.Metrics, lgr *logger.Logger) *Router {
	return &Router{
		cfg:       cfg,
		directory: directory,
		locker:    locker,
		metrics:   metrics,
		logger:    lgr,
		validate:  validator.New(),
	}
}

// Route decides the venue for a fused signal, validates the outgoing
// payload, and acquires the route lock before handing the signal back for
// emission. A nil signal is returned for no_route and locked outcomes.
func (r *Router) Route(ctx context.Context, se *models.SuperEvent) (*models.RoutedSignal, RouteOutcome) {
	routeType, info, reason := r.decide(se)
	if routeType == models.RouteNone {
		r.metrics.RecordEvent("router", "no_route")
		r.logger.Debug("no route", logger.String("symbol", se.Symbol), logger.String("reason", reason))
		return nil, OutcomeNoRoute
	}

	sig := &models.RoutedSignal{
		RouteID:    r.routeID(se),
		RouteType:  routeType,
		Symbol:     se.Symbol,
		Score:      se.FinalScore,
		Reason:     reason,
		RouteInfo:  info,
		Signal:     se,
		RoutedAt:   time.Now().UnixMilli(),
		LockTTLSec: int(r.cfg.Routing.LockTTL.Seconds()),
	}

	if err := r.validate.Struct(sig); err != nil {
		r.metrics.RecordEvent("router", "schema_rejected")
		r.logger.Error("routed signal failed schema validation",
			logger.String("symbol", se.Symbol),
			logger.String("route_type", string(routeType)),
			logger.Error(err))
		return nil, OutcomeNoRoute
	}

	lockKey := fmt.Sprintf("route:%s:%s", routeType, se.Symbol)
	ok, err := r.locker.Acquire(ctx, lockKey, r.cfg.Routing.LockTTL)
	if err != nil {
		// A broken lock store must not double-execute: treat as held.
		r.metrics.RecordError("route_lock")
		r.logger.Warn("route lock error, skipping signal",
			logger.String("key", lockKey), logger.Error(err))
		return nil, OutcomeLocked
	}
	if !ok {
		r.metrics.RecordEvent("router", "locked")
		return nil, OutcomeLocked
	}

	r.metrics.RecordEvent("router", string(routeType))
	return sig, OutcomeRouted
}

// decide applies the venue decision ladder.
func (r *Router) decide(se *models.SuperEvent) (models.RouteType, *models.RouteInfo, string) {
	ev := bestEvent(se)

	// (a) explicit on-chain indicators
	if ev != nil && ev.ContractAddress != "" {
		return models.RouteDEX, &models.RouteInfo{
			Venue:           "dex_resolved",
			ContractAddress: ev.ContractAddress,
			Chain:           chainOrDefault(ev.Chain, r.cfg.Routing.DefaultChain),
		}, "contract_address_present"
	}
	if ev != nil && util.ContainsAnyFold(ev.RawText, r.cfg.Routing.DexKeywords) {
		// keyword hit without a contract: the executor resolves it
		return models.RouteDEX, &models.RouteInfo{
			Venue:       "dex_speculative",
			Chain:       chainOrDefault(ev.Chain, r.cfg.Routing.DefaultChain),
			Speculative: true,
		}, "dex_keyword"
	}

	// (b) spot on the origin exchange
	if ev != nil && ev.Exchange != "" && r.directory.ListedOnSpot(ev.Exchange, se.Symbol) {
		return models.RouteCEXSpot, &models.RouteInfo{
			Venue:    "cex_spot",
			Exchange: ev.Exchange,
			Pair:     se.Symbol + "USDT",
		}, "origin_exchange_spot"
	}

	// (c) spot anywhere else, preferred ranking first
	if exs := r.directory.SpotExchanges(se.Symbol); len(exs) > 0 {
		chosen := r.preferExchange(exs)
		return models.RouteCEXSpot, &models.RouteInfo{
			Venue:    "cex_spot",
			Exchange: chosen,
			Pair:     se.Symbol + "USDT",
		}, "alternate_exchange_spot"
	}

	// (d) perpetual venue
	if r.directory.ListedOnPerp(se.Symbol) {
		return models.RouteHLPerp, &models.RouteInfo{
			Venue: "hl_perp",
			Pair:  se.Symbol,
		}, "perp_listed"
	}

	// (e) speculative DEX entry for high-conviction signals
	if se.FinalScore >= r.cfg.Routing.SpeculativeMin {
		return models.RouteDEX, &models.RouteInfo{
			Venue:       "dex_speculative",
			Chain:       r.cfg.Routing.DefaultChain,
			Speculative: true,
		}, "speculative_dex"
	}

	// (f) nowhere to execute
	return models.RouteNone, nil, "not_listed_anywhere"
}

// routeID derives the idempotency key from the representative event.
func (r *Router) routeID(se *models.SuperEvent) string {
	ev := bestEvent(se)
	if ev == nil {
		return util.HashFields(se.Symbol)
	}
	fields := append([]string{ev.Source, ev.Exchange}, ev.Symbols...)
	fields = append(fields, util.Truncate(ev.RawText, 48))
	return util.HashFields(fields...)
}

func (r *Router) preferExchange(listed []string) string {
	seen := make(map[string]bool, len(listed))
	for _, ex := range listed {
		seen[ex] = true
	}
	for _, ex := range r.cfg.Exchanges.Preferred {
		if seen[ex] {
			return ex
		}
	}
	return listed[0]
}

func bestEvent(se *models.SuperEvent) *models.RawEvent {
	if se.Best == nil {
		return nil
	}
	return se.Best.Event
}

func chainOrDefault(chain, def string) string {
	if chain != "" {
		return chain
	}
	return def
}
