package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RiskAction is the verdict class of a risk check.
type RiskAction string

const (
	RiskAllow      RiskAction = "ALLOW"
	RiskReduceSize RiskAction = "REDUCE_SIZE"
	RiskDelay      RiskAction = "DELAY"
	RiskBlock      RiskAction = "BLOCK"
)

// RiskCheckResult is the ephemeral outcome of one trade intent check.
// Reasons accumulate in evaluation order; they never short-circuit.
type RiskCheckResult struct {
	Action          RiskAction      `json:"action"`
	AllowedAmount   decimal.Decimal `json:"allowed_amount"`
	RequestedAmount decimal.Decimal `json:"requested_amount"`
	Reasons         []string        `json:"reasons"`
	CooldownSeconds int             `json:"cooldown_seconds,omitempty"`
}

// Approved reports whether any size at all may trade.
func (r *RiskCheckResult) Approved() bool {
	return r.Action == RiskAllow || r.Action == RiskReduceSize
}

// Position is one held symbol. Entry price is volume-weighted across adds;
// take-profit only ratchets upward.
type Position struct {
	Symbol     string          `json:"symbol"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	Amount     decimal.Decimal `json:"amount"` // base units held
	Value      decimal.Decimal `json:"value"`  // quote value at entry
	StopLoss   decimal.Decimal `json:"stop_loss"`
	TakeProfit decimal.Decimal `json:"take_profit"`
	PnL        decimal.Decimal `json:"pnl"` // unrealized, updated per tick
	OpenedAt   time.Time       `json:"opened_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// TradeResult is the structured outcome of one execution attempt, live or
// simulated. External failures land here; they never propagate further.
type TradeResult struct {
	RouteID    string          `json:"route_id"`
	Symbol     string          `json:"symbol"`
	RouteType  RouteType       `json:"route_type"`
	Venue      string          `json:"venue"`
	Success    bool            `json:"success"`
	Simulated  bool            `json:"simulated"`
	Amount     decimal.Decimal `json:"amount"`
	Price      decimal.Decimal `json:"price"`
	Output     decimal.Decimal `json:"output"` // expected or filled output units
	GasCost    decimal.Decimal `json:"gas_cost,omitempty"`
	FailReason string          `json:"fail_reason,omitempty"`
	ExecutedAt int64           `json:"executed_at"` // ms epoch
}

// Quote is a venue price quote for a prospective trade.
type Quote struct {
	Symbol         string          `json:"symbol"`
	Price          decimal.Decimal `json:"price"`
	ExpectedOutput decimal.Decimal `json:"expected_output"`
	GasEstimate    decimal.Decimal `json:"gas_estimate"`
}

// SafetyReport is the token-safety verdict for a DEX candidate.
type SafetyReport struct {
	Safe    bool            `json:"safe"`
	BuyTax  decimal.Decimal `json:"buy_tax"`
	SellTax decimal.Decimal `json:"sell_tax"`
	Reason  string          `json:"reason,omitempty"`
}
