package usecase

import (
	"fmt"
	"sync"
	"time"

	"SigFuse/internal/domain/models"
	domrepo "SigFuse/internal/domain/repository"
	"SigFuse/pkg/config"
	"SigFuse/pkg/logger"
	"SigFuse/pkg/util"

	"github.com/shopspring/decimal"
)

// RiskManager gates and sizes trades against capital limits, drawdown
// tiers, daily counters, blacklists, and loss cooldowns. Counters are
// process-local and mutex-guarded; a restart resets the day's state, which
// fails safe (limits start fresh, never looser than configured).
//
// Checks accumulate reasons instead of short-circuiting so a rejected
// trade reports every limit it tripped, and size adjustments only ever
// clamp downward.
type RiskManager struct {
	cfg     *config.Config
	metrics domrepo.Metrics
	logger  *logger.Logger

	mu               sync.Mutex
	positions        map[string]*models.Position
	staticBlacklist  map[string]bool
	dynamicBlacklist map[string]time.Time // symbol -> expiry
	dailyDay         time.Time
	dailyTrades      int
	dailyPnL         decimal.Decimal
	peakEquity       decimal.Decimal
	realizedPnL      decimal.Decimal
	consecutiveLoss  int
	cooldownUntil    time.Time
	winCount         int
	lossCount        int
	winTotal         decimal.Decimal // sum of winning P&L
	lossTotal        decimal.Decimal // sum of losing P&L, as a positive value
}

// Kelly priors stand in until enough closed trades accumulate.
const (
	kellyPriorWinProb = 0.55
	kellyPriorPayoff  = 1.5
	kellySampleMin    = 10
)

// NewRiskManager builds the risk gate from config limits.
func NewRiskManager(cfg *config.Config, metrics domrepo.Metrics, lgr *logger.Logger) *RiskManager {
	r := &RiskManager{
		cfg:              cfg,
		metrics:          metrics,
		logger:           lgr,
		positions:        make(map[string]*models.Position),
		staticBlacklist:  make(map[string]bool, len(cfg.Risk.StaticBlacklist)),
		dynamicBlacklist: make(map[string]time.Time),
		dailyDay:         util.DayBoundary(time.Now()),
		dailyPnL:         decimal.Zero,
		peakEquity:       decimal.NewFromFloat(cfg.Risk.TotalCapital),
		realizedPnL:      decimal.Zero,
		winTotal:         decimal.Zero,
		lossTotal:        decimal.Zero,
	}
	for _, s := range cfg.Risk.StaticBlacklist {
		r.staticBlacklist[util.NormalizeSymbol(s)] = true
	}
	return r
}

// CheckTrade evaluates a trade intent of requested quote-currency size.
// Hard blocks (blacklist, daily limits, halt-level drawdown) zero the
// allowed amount; soft limits clamp it. DELAY is reserved for the loss
// cooldown so callers can retry after CooldownSeconds.
func (r *RiskManager) CheckTrade(symbol string, requested decimal.Decimal) *models.RiskCheckResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	r.rollDayLocked(now)

	sym := util.NormalizeSymbol(symbol)
	res := &models.RiskCheckResult{
		RequestedAmount: requested,
		AllowedAmount:   requested,
	}
	blocked := false
	delayed := false

	if r.staticBlacklist[sym] {
		res.Reasons = append(res.Reasons, "blacklisted:static")
		blocked = true
	}
	if exp, ok := r.dynamicBlacklist[sym]; ok {
		if now.Before(exp) {
			res.Reasons = append(res.Reasons, "blacklisted:dynamic")
			blocked = true
		} else {
			delete(r.dynamicBlacklist, sym)
		}
	}

	if now.Before(r.cooldownUntil) {
		remaining := int(r.cooldownUntil.Sub(now).Seconds()) + 1
		res.Reasons = append(res.Reasons, fmt.Sprintf("loss_cooldown:%ds", remaining))
		res.CooldownSeconds = remaining
		delayed = true
	}

	if r.dailyTrades >= r.cfg.Risk.MaxDailyTrades {
		res.Reasons = append(res.Reasons, fmt.Sprintf("daily_trade_limit:%d", r.cfg.Risk.MaxDailyTrades))
		blocked = true
	}
	dailyLossLimit := decimal.NewFromFloat(r.cfg.Risk.DailyLossLimit)
	if r.dailyPnL.IsNegative() && r.dailyPnL.Neg().GreaterThanOrEqual(dailyLossLimit) {
		res.Reasons = append(res.Reasons, fmt.Sprintf("daily_loss_limit:%s", dailyLossLimit))
		blocked = true
	}

	allowed := requested

	// Drawdown tiers against peak equity. Halving starts at the reduce
	// threshold, a softer 0.75x applies from half of it, halt blocks.
	ddPct := r.drawdownPctLocked()
	switch {
	case ddPct >= r.cfg.Risk.DrawdownHaltPct:
		res.Reasons = append(res.Reasons, fmt.Sprintf("drawdown_halt:%.1f%%", ddPct))
		blocked = true
	case ddPct >= r.cfg.Risk.DrawdownReducePct:
		allowed = allowed.Mul(decimal.NewFromFloat(0.5))
		res.Reasons = append(res.Reasons, fmt.Sprintf("drawdown_reduce:%.1f%%", ddPct))
	case ddPct >= r.cfg.Risk.DrawdownReducePct/2:
		allowed = allowed.Mul(decimal.NewFromFloat(0.75))
		res.Reasons = append(res.Reasons, fmt.Sprintf("drawdown_soft_reduce:%.1f%%", ddPct))
	}

	capital := decimal.NewFromFloat(r.cfg.Risk.TotalCapital)

	if maxSingle := capital.Mul(decimal.NewFromFloat(r.cfg.Risk.MaxSingleTradePct / 100)); allowed.GreaterThan(maxSingle) {
		allowed = maxSingle
		res.Reasons = append(res.Reasons, fmt.Sprintf("max_single_trade:%s", maxSingle))
	}

	maxSymbol := capital.Mul(decimal.NewFromFloat(r.cfg.Risk.MaxSymbolExposure / 100))
	symExposure := decimal.Zero
	if pos, ok := r.positions[sym]; ok {
		symExposure = pos.Value
	}
	if room := maxSymbol.Sub(symExposure); allowed.GreaterThan(room) {
		if room.IsNegative() {
			room = decimal.Zero
		}
		allowed = room
		res.Reasons = append(res.Reasons, fmt.Sprintf("symbol_exposure:%s", maxSymbol))
	}

	maxTotal := capital.Mul(decimal.NewFromFloat(r.cfg.Risk.MaxTotalExposure / 100))
	if room := maxTotal.Sub(r.totalExposureLocked()); allowed.GreaterThan(room) {
		if room.IsNegative() {
			room = decimal.Zero
		}
		allowed = room
		res.Reasons = append(res.Reasons, fmt.Sprintf("total_exposure:%s", maxTotal))
	}

	// Consecutive losses below the cooldown threshold still shave size.
	if r.consecutiveLoss > 0 && r.consecutiveLoss < r.cfg.Risk.CooldownLosses {
		factor := decimal.NewFromFloat(1).Sub(
			decimal.NewFromFloat(0.25).Mul(decimal.NewFromInt(int64(r.consecutiveLoss))))
		allowed = allowed.Mul(factor)
		res.Reasons = append(res.Reasons, fmt.Sprintf("loss_streak_reduce:%d", r.consecutiveLoss))
	}

	minTrade := decimal.NewFromFloat(r.cfg.Risk.MinTradeAmount)
	if !blocked && !delayed && allowed.LessThan(minTrade) {
		res.Reasons = append(res.Reasons, fmt.Sprintf("below_min_trade:%s", minTrade))
		blocked = true
	}

	switch {
	case blocked:
		res.Action = models.RiskBlock
		res.AllowedAmount = decimal.Zero
	case delayed:
		res.Action = models.RiskDelay
		res.AllowedAmount = decimal.Zero
	case allowed.LessThan(requested):
		res.Action = models.RiskReduceSize
		res.AllowedAmount = allowed
	default:
		res.Action = models.RiskAllow
		res.AllowedAmount = allowed
	}

	r.metrics.RecordEvent("risk", string(res.Action))
	return res
}

// KellyInputs derives win probability and payoff ratio from closed-trade
// history, falling back to fixed priors while the sample is thin.
func (r *RiskManager) KellyInputs() (float64, float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	total := r.winCount + r.lossCount
	if total < kellySampleMin || r.winCount == 0 || r.lossCount == 0 {
		return kellyPriorWinProb, kellyPriorPayoff
	}

	winProb := float64(r.winCount) / float64(total)
	avgWin := r.winTotal.Div(decimal.NewFromInt(int64(r.winCount)))
	avgLoss := r.lossTotal.Div(decimal.NewFromInt(int64(r.lossCount)))
	payoff, _ := avgWin.Div(avgLoss).Float64()
	return winProb, payoff
}

// SuggestSize returns a Kelly-fraction position size for the given win
// probability and win/loss payoff ratio, clamped to the configured band.
func (r *RiskManager) SuggestSize(winProb, payoffRatio float64) decimal.Decimal {
	f := 0.0
	if payoffRatio > 0 {
		f = winProb - (1-winProb)/payoffRatio
	}
	if f < r.cfg.Risk.KellyMinFraction {
		f = r.cfg.Risk.KellyMinFraction
	}
	if f > r.cfg.Risk.KellyMaxFraction {
		f = r.cfg.Risk.KellyMaxFraction
	}
	return decimal.NewFromFloat(r.cfg.Risk.TotalCapital).Mul(decimal.NewFromFloat(f))
}

// RecordTrade folds an execution outcome into the daily counters and the
// loss streak. Only live fills count; simulated results leave state alone.
func (r *RiskManager) RecordTrade(tr *models.TradeResult) {
	if tr.Simulated {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	r.rollDayLocked(now)
	r.dailyTrades++

	if tr.Success {
		return
	}
	r.consecutiveLoss++
	if r.consecutiveLoss >= r.cfg.Risk.CooldownLosses {
		r.startCooldownLocked(now)
	}
}

// Blacklist bars a symbol from trading for the dynamic-blacklist TTL,
// typically after a failed safety check.
func (r *RiskManager) Blacklist(symbol, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sym := util.NormalizeSymbol(symbol)
	r.dynamicBlacklist[sym] = time.Now().Add(r.cfg.Risk.DynamicBlacklistTTL)
	r.metrics.RecordEvent("risk", "blacklisted")
	r.logger.Warn("symbol blacklisted",
		logger.String("symbol", sym), logger.String("reason", reason))
}

// OpenPosition records a fill, volume-weighting the entry price when the
// symbol is already held. The stop level tracks the blended entry.
func (r *RiskManager) OpenPosition(symbol string, price, amount decimal.Decimal) *models.Position {
	r.mu.Lock()
	defer r.mu.Unlock()

	sym := util.NormalizeSymbol(symbol)
	now := time.Now()
	value := price.Mul(amount)

	pos, ok := r.positions[sym]
	if !ok {
		pos = &models.Position{
			Symbol:     sym,
			EntryPrice: price,
			Amount:     amount,
			Value:      value,
			OpenedAt:   now,
		}
		r.positions[sym] = pos
	} else {
		newAmount := pos.Amount.Add(amount)
		pos.EntryPrice = pos.Value.Add(value).Div(newAmount)
		pos.Amount = newAmount
		pos.Value = pos.Value.Add(value)
	}
	pos.StopLoss = pos.EntryPrice.Mul(decimal.NewFromFloat(1 - r.cfg.Risk.StopLossPct/100))
	pos.UpdatedAt = now
	r.metrics.RecordGauge("open_positions", float64(len(r.positions)))
	return pos
}

// UpdatePrice marks a position to the latest price. The take-profit level
// only ratchets upward; it never loosens on pullbacks.
func (r *RiskManager) UpdatePrice(symbol string, price decimal.Decimal) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pos, ok := r.positions[util.NormalizeSymbol(symbol)]
	if !ok {
		return
	}
	pos.PnL = price.Sub(pos.EntryPrice).Mul(pos.Amount)
	if tp := price.Mul(decimal.NewFromFloat(0.9)); tp.GreaterThan(pos.TakeProfit) {
		pos.TakeProfit = tp
	}
	pos.UpdatedAt = time.Now()
}

// ClosePosition realizes P&L at the exit price, updates the daily counters
// and loss streak, and removes the position.
func (r *RiskManager) ClosePosition(symbol string, exitPrice decimal.Decimal) decimal.Decimal {
	r.mu.Lock()
	defer r.mu.Unlock()

	sym := util.NormalizeSymbol(symbol)
	pos, ok := r.positions[sym]
	if !ok {
		return decimal.Zero
	}
	delete(r.positions, sym)

	now := time.Now()
	r.rollDayLocked(now)

	pnl := exitPrice.Sub(pos.EntryPrice).Mul(pos.Amount)
	r.dailyPnL = r.dailyPnL.Add(pnl)
	r.realizedPnL = r.realizedPnL.Add(pnl)

	if pnl.IsPositive() {
		r.winCount++
		r.winTotal = r.winTotal.Add(pnl)
	} else if pnl.IsNegative() {
		r.lossCount++
		r.lossTotal = r.lossTotal.Add(pnl.Neg())
	}

	if equity := decimal.NewFromFloat(r.cfg.Risk.TotalCapital).Add(r.realizedPnL); equity.GreaterThan(r.peakEquity) {
		r.peakEquity = equity
	}

	if pnl.IsNegative() {
		r.consecutiveLoss++
		if r.consecutiveLoss >= r.cfg.Risk.CooldownLosses {
			r.startCooldownLocked(now)
		}
	} else {
		r.consecutiveLoss = 0
	}

	r.metrics.RecordGauge("open_positions", float64(len(r.positions)))
	return pnl
}

// Position returns a copy of the held position for a symbol, if any.
func (r *RiskManager) Position(symbol string) (models.Position, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pos, ok := r.positions[util.NormalizeSymbol(symbol)]
	if !ok {
		return models.Position{}, false
	}
	return *pos, true
}

// OpenPositions reports how many symbols are currently held.
func (r *RiskManager) OpenPositions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.positions)
}

// totalExposureLocked sums the entry value of all open positions.
func (r *RiskManager) totalExposureLocked() decimal.Decimal {
	total := decimal.Zero
	for _, pos := range r.positions {
		total = total.Add(pos.Value)
	}
	return total
}

// drawdownPctLocked measures current equity against the high-water mark.
func (r *RiskManager) drawdownPctLocked() float64 {
	if !r.peakEquity.IsPositive() {
		return 0
	}
	equity := decimal.NewFromFloat(r.cfg.Risk.TotalCapital).Add(r.realizedPnL)
	dd := r.peakEquity.Sub(equity).Div(r.peakEquity).Mul(decimal.NewFromInt(100))
	v, _ := dd.Float64()
	if v < 0 {
		return 0
	}
	return v
}

// startCooldownLocked arms the escalating loss cooldown. Each loss past
// the threshold doubles the base interval up to the cap.
func (r *RiskManager) startCooldownLocked(now time.Time) {
	excess := r.consecutiveLoss - r.cfg.Risk.CooldownLosses
	d := r.cfg.Risk.CooldownBase
	for i := 0; i < excess && d < r.cfg.Risk.CooldownMax; i++ {
		d *= 2
	}
	if d > r.cfg.Risk.CooldownMax {
		d = r.cfg.Risk.CooldownMax
	}
	r.cooldownUntil = now.Add(d)
	r.metrics.RecordEvent("risk", "cooldown_armed")
	r.logger.Warn("loss cooldown armed",
		logger.Int("consecutive_losses", r.consecutiveLoss),
		logger.Duration("duration", d))
}

// rollDayLocked resets daily counters when the UTC day changes.
func (r *RiskManager) rollDayLocked(now time.Time) {
	day := util.DayBoundary(now)
	if day.Equal(r.dailyDay) {
		return
	}
	r.dailyDay = day
	r.dailyTrades = 0
	r.dailyPnL = decimal.Zero
}
