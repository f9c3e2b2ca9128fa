package repository

import (
	"context"
	"time"

	"SigFuse/internal/domain/models"
)

// Bus is the durable append-log the pipeline stages communicate over.
// Implementations must preserve per-stream ordering and support consumer
// groups with explicit acks.
type Bus interface {
	Publish(ctx context.Context, topic string, payload interface{}) error
	// Read blocks up to block for new entries on topic for the given consumer
	// group, returning raw payloads and their ack handles.
	Read(ctx context.Context, topic, group, consumer string, count int, block time.Duration) ([]BusMessage, error)
	Ack(ctx context.Context, topic, group string, ids ...string) error
	Close() error
}

// BusMessage is one entry read from a stream.
type BusMessage struct {
	ID      string
	Payload []byte
}

// Locker is the cross-instance mutual-exclusion primitive. Acquire is
// atomic set-if-absent-with-expiry; a false return means another instance
// holds the key.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// Metrics records pipeline operational counters. Failures surface here,
// not as per-event noise.
type Metrics interface {
	RecordEvent(stage, outcome string)
	RecordError(kind string)
	RecordScore(symbol string, score float64)
	RecordLatency(op string, seconds float64)
	RecordGauge(name string, value float64)
}

// TradeLog persists executed trade results for audit.
type TradeLog interface {
	Store(ctx context.Context, t *models.TradeResult) error
	Health(ctx context.Context) error
	Close() error
}

// SymbolDirectory answers venue-listing questions from periodically
// refreshed per-exchange snapshots. Lookups never hit the network.
type SymbolDirectory interface {
	ListedOnSpot(exchange, symbol string) bool
	SpotExchanges(symbol string) []string
	ListedOnPerp(symbol string) bool
	Refresh(ctx context.Context) error
}

// ContractResolver resolves a symbol to an on-chain contract address.
type ContractResolver interface {
	Resolve(ctx context.Context, symbol, chain string) (address string, err error)
}

// SafetyChecker runs the external honeypot/tax check on a contract.
type SafetyChecker interface {
	Check(ctx context.Context, address, chain string) (*models.SafetyReport, error)
}

// QuoteService fetches a swap quote for a DEX trade.
type QuoteService interface {
	Quote(ctx context.Context, address, chain string, amount string) (*models.Quote, error)
}

// OrderGateway submits orders to a CEX spot or perp venue.
type OrderGateway interface {
	PlaceOrder(ctx context.Context, venue, symbol, side string, amount string) (*models.TradeResult, error)
}

// AuditPublisher exports trade results to the audit backend.
type AuditPublisher interface {
	PublishTrade(ctx context.Context, t *models.TradeResult) error
	Close() error
}
